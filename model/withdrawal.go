package model

import "github.com/shopspring/decimal"

// Withdrawal is a persisted pending withdrawal. Retry counts the times the
// flow was resumed after an engine or network reconnection; a resumed record
// must not be re-proposed from scratch.
type Withdrawal struct {
	ID                   uint64          `gorm:"primaryKey;autoIncrement:true"`
	UserPublicIdentifier string          `gorm:"uniqueIndex;type:varchar(255)"`
	Recipient            string          `gorm:"type:varchar(64)"`
	AssetID              string          `gorm:"type:varchar(64)"`
	Amount               decimal.Decimal `gorm:"type:DECIMAL(38,0)"`
	TxHash               string          `gorm:"type:varchar(128)"`
	NodeSubmitted        bool
	Confirmed            bool
	Retry                int
}

func (Withdrawal) TableName() string {
	return "withdrawal"
}
