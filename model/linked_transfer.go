package model

import "github.com/shopspring/decimal"

// LinkedTransfer tracks one hashed-preimage payment routed through the node.
type LinkedTransfer struct {
	ID                 uint64          `gorm:"primaryKey;autoIncrement:true"`
	PaymentID          string          `gorm:"uniqueIndex;type:varchar(128)"`
	LinkedHash         string          `gorm:"index;type:varchar(128)"`
	SenderIdentifier   string          `gorm:"index;type:varchar(255)"`
	ReceiverIdentifier string          `gorm:"index;type:varchar(255)"`
	SenderAppID        string          `gorm:"index;type:varchar(128)"`
	ReceiverAppID      string          `gorm:"type:varchar(128)"`
	Amount             decimal.Decimal `gorm:"type:DECIMAL(38,0)"`
	AssetID            string          `gorm:"type:varchar(64)"`
	Status             string          `gorm:"index;type:varchar(16)"`
}

func (LinkedTransfer) TableName() string {
	return "linked_transfer"
}
