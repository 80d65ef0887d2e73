package model

// AppRegistry is the catalog record for one supported application on one
// network. Exactly one row per (name, network) pair.
type AppRegistry struct {
	ID                   uint64 `gorm:"primaryKey;autoIncrement:true"`
	Name                 string `gorm:"uniqueIndex:idx_name_network;type:varchar(64)"`
	Network              string `gorm:"uniqueIndex:idx_name_network;type:varchar(32)"`
	OutcomeType          int
	AppDefinitionAddress string `gorm:"index;type:varchar(64)"`
	StateEncoding        string `gorm:"type:text"`
	ActionEncoding       string `gorm:"type:text"`
	AllowNodeInstall     bool
}

func (AppRegistry) TableName() string {
	return "app_registry"
}
