package dao

import (
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/model"
)

// FindChannelByUser returns the channel for a user public identifier, or
// ErrNotFound.
func (d *Dao) FindChannelByUser(userPubID string) (*model.Channel, error) {
	var channel model.Channel
	if err := d.db.Where("user_public_identifier = ?", userPubID).First(&channel).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &channel, nil
}

func (d *Dao) FindChannelByMultisig(multisigAddress string) (*model.Channel, error) {
	var channel model.Channel
	if err := d.db.Where("multisig_address = ?", multisigAddress).First(&channel).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &channel, nil
}

func (d *Dao) SaveChannel(channel *model.Channel) error {
	return d.db.Save(channel).Error
}

func (d *Dao) SetInflightDeposit(userPubID string, inflight bool) error {
	res := d.db.Model(&model.Channel{}).
		Where("user_public_identifier = ?", userPubID).
		Update("deposit_in_flight", inflight)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return xerrors.Errorf("no channel exists for %v: %w", userPubID, ErrNotFound)
	}
	return nil
}

// GetPaymentProfile returns the collateral policy for (user, asset), or
// ErrNotFound when either the channel or the profile is missing.
func (d *Dao) GetPaymentProfile(userPubID string, assetID string) (*model.PaymentProfile, error) {
	channel, err := d.FindChannelByUser(userPubID)
	if err != nil {
		return nil, err
	}

	var profile model.PaymentProfile
	err = d.db.Where("channel_id = ? AND asset_id = ?", channel.ID, assetID).First(&profile).Error
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (d *Dao) AddPaymentProfile(userPubID string, profile *model.PaymentProfile) error {
	channel, err := d.FindChannelByUser(userPubID)
	if err != nil {
		return err
	}

	profile.ChannelID = channel.ID
	return d.db.Create(profile).Error
}
