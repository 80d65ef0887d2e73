package model

// Channel is one multisig-backed relationship between a user and this node.
// MultisigAddress is immutable once set; at most one row per user identifier.
type Channel struct {
	ID                   uint64 `gorm:"primaryKey;autoIncrement:true"`
	UserPublicIdentifier string `gorm:"uniqueIndex;type:varchar(255)"`
	NodePublicIdentifier string `gorm:"index;type:varchar(255)"`
	MultisigAddress      string `gorm:"uniqueIndex;type:varchar(64)"`
	Available            bool
	DepositInFlight      bool
}

func (Channel) TableName() string {
	return "channel"
}
