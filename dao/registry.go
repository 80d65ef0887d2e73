package dao

import (
	"github.com/rqzrqh/channel_hub/model"
)

func (d *Dao) FindAppByDefinition(appDefinitionAddress string) (*model.AppRegistry, error) {
	var entry model.AppRegistry
	err := d.db.Where("app_definition_address = ?", appDefinitionAddress).First(&entry).Error
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (d *Dao) FindAppByNameAndNetwork(name string, network string) (*model.AppRegistry, error) {
	var entry model.AppRegistry
	err := d.db.Where("name = ? AND network = ?", name, network).First(&entry).Error
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (d *Dao) SaveAppRegistryEntry(entry *model.AppRegistry) error {
	return d.db.Save(entry).Error
}
