package dao

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
	"gorm.io/gorm"

	"github.com/rqzrqh/channel_hub/model"
)

var log = logging.Logger("dao")

var ErrNotFound = xerrors.New("record not found")

type Dao struct {
	ctx context.Context
	db  *gorm.DB
	rds *redis.Client
}

func NewDao(ctx context.Context, db *gorm.DB, rds *redis.Client) *Dao {
	return &Dao{
		ctx: ctx,
		db:  db,
		rds: rds,
	}
}

func CreateTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Channel{},
		&model.PaymentProfile{},
		&model.AppRegistry{},
		&model.LinkedTransfer{},
		&model.Withdrawal{},
	)
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
