package main

import (
	"fmt"
	syslog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/stats/view"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/engine"
	"github.com/rqzrqh/channel_hub/hub"
	"github.com/rqzrqh/channel_hub/provider"
	"github.com/rqzrqh/channel_hub/swaprate"
	"github.com/rqzrqh/channel_hub/util"

	_ "net/http/pprof"
)

var cmdNode = &cli.Command{
	Name:  "node",
	Usage: "Start the channel hub node",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "engine",
			Usage: "channel engine rpc, <token>:<maddr>, or <maddr> when the engine has no auth",
		},
		&cli.StringFlag{
			Name:  "eth-rpc",
			Usage: "http://127.0.0.1:8545",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "root:123456@tcp(127.0.0.1:3306)/channel_hub",
		},
		&cli.StringFlag{
			Name:  "redis",
			Usage: "127.0.0.1:6379",
		},
		&cli.StringFlag{
			Name:  "network",
			Value: "ganache",
		},
		&cli.StringFlag{
			Name:  "allowed-swaps",
			Usage: "comma separated from>to asset pairs",
		},
		&cli.StringFlag{
			Name:        "log-level",
			DefaultText: "info",
		},
	},
	Action: func(cctx *cli.Context) error {
		go func() {
			http.ListenAndServe(":6060", nil) //nolint:errcheck
		}()

		ctx := util.ReqContext(cctx)

		ll := cctx.String("log-level")
		if err := logging.SetLogLevel("*", ll); err != nil {
			return err
		}
		if err := logging.SetLogLevel("rpc", "error"); err != nil {
			return err
		}

		// connect channel engine
		tokenAddr := cctx.String("engine")
		if tokenAddr == "" {
			return fmt.Errorf("no engine api info")
		}

		var rawAPI engine.API
		var closer jsonrpc.ClientCloser
		var err error
		if tos := strings.SplitN(tokenAddr, ":", 2); len(tos) == 2 && tos[0] != "" {
			rawAPI, closer, err = util.GetEngineAPIUsingCredentials(cctx.Context, tos[1], tos[0])
		} else {
			rawAPI, closer, err = util.GetEngineAPIWithoutCredentials(cctx.Context, tokenAddr)
		}
		if err != nil {
			return err
		}
		defer closer()

		if err := view.Register(util.APIRequestDurationView); err != nil {
			return err
		}

		// time every engine call per endpoint
		var metered engine.Struct
		util.Proxy(rawAPI, &metered.Internal)
		var api engine.API = &metered

		publicIdentifier, err := api.PublicIdentifier(ctx)
		if err != nil {
			return err
		}
		log.Infof("engine public identifier: %v", publicIdentifier)

		newLogger := logger.New(
			syslog.New(os.Stdout, "\r\n", syslog.LstdFlags),
			logger.Config{
				SlowThreshold:             1000 * time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  true,
			},
		)

		db, err := gorm.Open(mysql.Open(cctx.String("db")), &gorm.Config{
			Logger: newLogger,
		})
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}
		log.Info("sql ping success")

		rds := redis.NewClient(&redis.Options{
			Addr: cctx.String("redis"),
		})
		if err := rds.Ping(ctx).Err(); err != nil {
			return err
		}
		log.Info("redis ping success")

		ethProvider, err := provider.NewEthProvider(cctx.String("eth-rpc"), nil)
		if err != nil {
			return err
		}

		h := hub.NewHub(ctx, db, rds, api, ethProvider, swaprate.NewStaticOracle(), hub.Config{
			Network:          cctx.String("network"),
			PublicIdentifier: publicIdentifier,
			AllowedSwaps:     parseAllowedSwaps(cctx.String("allowed-swaps")),
		})

		if err := h.Start(); err != nil {
			return err
		}
		log.Info("hub started")

		<-ctx.Done()
		h.Stop()
		return nil
	},
}

func parseAllowedSwaps(raw string) []common.AllowedSwap {
	var swaps []common.AllowedSwap
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.Split(pair, ">")
		if len(parts) != 2 {
			continue
		}
		swaps = append(swaps, common.AllowedSwap{From: parts[0], To: parts[1]})
	}
	return swaps
}
