package dao

import (
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/model"
)

func (d *Dao) SaveLinkedTransfer(transfer *model.LinkedTransfer) error {
	return d.db.Create(transfer).Error
}

func (d *Dao) FindLinkedTransferByPaymentID(paymentID string) (*model.LinkedTransfer, error) {
	var transfer model.LinkedTransfer
	if err := d.db.Where("payment_id = ?", paymentID).First(&transfer).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

func (d *Dao) FindLinkedTransferBySenderApp(appInstanceID string) (*model.LinkedTransfer, error) {
	var transfer model.LinkedTransfer
	if err := d.db.Where("sender_app_id = ?", appInstanceID).First(&transfer).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

func (d *Dao) SetLinkedTransferStatus(paymentID string, status common.TransferStatus) error {
	res := d.db.Model(&model.LinkedTransfer{}).
		Where("payment_id = ?", paymentID).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return xerrors.Errorf("no linked transfer for payment %v: %w", paymentID, ErrNotFound)
	}
	return nil
}

func (d *Dao) SetLinkedTransferReceiverApp(paymentID string, appInstanceID string) error {
	return d.db.Model(&model.LinkedTransfer{}).
		Where("payment_id = ?", paymentID).
		Update("receiver_app_id", appInstanceID).Error
}
