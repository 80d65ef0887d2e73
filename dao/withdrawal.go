package dao

import (
	"gorm.io/gorm"

	"github.com/rqzrqh/channel_hub/model"
)

// UpsertWithdrawal persists the single pending withdrawal per user.
func (d *Dao) UpsertWithdrawal(w *model.Withdrawal) error {
	existing, err := d.FindWithdrawalByUser(w.UserPublicIdentifier)
	if err != nil {
		if err != ErrNotFound {
			return err
		}
		return d.db.Create(w).Error
	}
	w.ID = existing.ID
	return d.db.Save(w).Error
}

func (d *Dao) FindWithdrawalByUser(userPubID string) (*model.Withdrawal, error) {
	var w model.Withdrawal
	if err := d.db.Where("user_public_identifier = ?", userPubID).First(&w).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (d *Dao) FindPendingWithdrawals() ([]*model.Withdrawal, error) {
	var pending []*model.Withdrawal
	if err := d.db.Where("confirmed = ?", false).Find(&pending).Error; err != nil {
		return nil, err
	}
	return pending, nil
}

func (d *Dao) BumpWithdrawalRetry(userPubID string) error {
	return d.db.Model(&model.Withdrawal{}).
		Where("user_public_identifier = ?", userPubID).
		Update("retry", gorm.Expr("retry + 1")).Error
}

func (d *Dao) MarkWithdrawalConfirmed(userPubID string, txHash string) error {
	return d.db.Model(&model.Withdrawal{}).
		Where("user_public_identifier = ?", userPubID).
		Updates(map[string]interface{}{"confirmed": true, "tx_hash": txHash}).Error
}
