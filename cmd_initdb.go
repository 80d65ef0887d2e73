package main

import (
	"fmt"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/rqzrqh/channel_hub/initdb"
)

var cmdInitDb = &cli.Command{
	Name:  "initdb",
	Usage: "Create the hub tables and seed the app registry",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "db",
			Usage: "root:123456@tcp(127.0.0.1:3306)/channel_hub",
		},
		&cli.StringFlag{
			Name:  "network",
			Value: "ganache",
		},
		&cli.StringFlag{
			Name:  "swap-app",
			Usage: "SimpleTwoPartySwapApp definition address",
		},
		&cli.StringFlag{
			Name:  "transfer-app",
			Usage: "UnidirectionalTransferApp definition address",
		},
		&cli.StringFlag{
			Name:  "linked-transfer-app",
			Usage: "UnidirectionalLinkedTransferApp definition address",
		},
		&cli.StringFlag{
			Name:        "log-level",
			DefaultText: "info",
		},
	},
	Action: func(cctx *cli.Context) error {
		ll := cctx.String("log-level")
		if ll != "" {
			if err := logging.SetLogLevel("*", ll); err != nil {
				return err
			}
		}

		db, err := gorm.Open(mysql.Open(cctx.String("db")), &gorm.Config{})
		if err != nil {
			fmt.Println("failed to connect database ", err)
			os.Exit(0)
		}

		return initdb.InitDatabase(db, cctx.String("network"), initdb.AppAddresses{
			SimpleTwoPartySwap:           cctx.String("swap-app"),
			UnidirectionalTransfer:       cctx.String("transfer-app"),
			UnidirectionalLinkedTransfer: cctx.String("linked-transfer-app"),
		})
	},
}
