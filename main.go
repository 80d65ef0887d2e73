package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var (
	log = logging.Logger("channel_hub")
)

func main() {
	if err := logging.SetLogLevel("*", "info"); err != nil {
		log.Fatal(err)
	}
	app := &cli.App{
		Name:  "channel_hub",
		Usage: "off-chain payment channel hub node",
		Flags: []cli.Flag{},
		Commands: []*cli.Command{
			cmdInitDb,
			cmdNode,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
