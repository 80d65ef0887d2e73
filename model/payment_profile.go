package model

import "github.com/shopspring/decimal"

// PaymentProfile is the per-channel, per-asset collateral policy.
// AmountToCollateralize is the refill target once the node-side free balance
// drops below MinimumMaintainedCollateral.
type PaymentProfile struct {
	ID                          uint64          `gorm:"primaryKey;autoIncrement:true"`
	ChannelID                   uint64          `gorm:"index"`
	AssetID                     string          `gorm:"index;type:varchar(64)"`
	MinimumMaintainedCollateral decimal.Decimal `gorm:"type:DECIMAL(38,0)"`
	AmountToCollateralize       decimal.Decimal `gorm:"type:DECIMAL(38,0)"`
}

func (PaymentProfile) TableName() string {
	return "payment_profile"
}
