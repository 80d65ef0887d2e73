package hub

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/dao"
	"github.com/rqzrqh/channel_hub/engine"
)

// TransferService walks linked-transfer records through their lifecycle:
// PENDING on proposal, REDEEMED when the receiver reveals the preimage,
// RECLAIMED once the sender-side app is uninstalled.
type TransferService struct {
	dao *dao.Dao
}

func NewTransferService(d *dao.Dao) *TransferService {
	return &TransferService{dao: d}
}

// HandleUpdateState processes a receiver's claim action. The preimage must
// hash back to the linked hash the sender committed to, or the transfer is
// marked FAILED and the claim refused.
func (ts *TransferService) HandleUpdateState(ctx context.Context, ev *engine.Event) error {
	if ev.Action == nil {
		return nil
	}

	transfer, err := ts.dao.FindLinkedTransferByPaymentID(ev.Action.PaymentID)
	if err != nil {
		if err == dao.ErrNotFound {
			log.Debugf("update state for unknown payment %v, ignoring", ev.Action.PaymentID)
			return nil
		}
		return err
	}

	if transfer.Status != string(common.TransferPending) {
		return xerrors.Errorf("payment %v is %v, cannot redeem", transfer.PaymentID, transfer.Status)
	}

	derived := common.LinkedHash(ev.Action.Amount, ev.Action.AssetID, ev.Action.PaymentID, ev.Action.PreImage)
	if derived != transfer.LinkedHash {
		if err := ts.dao.SetLinkedTransferStatus(transfer.PaymentID, common.TransferFailed); err != nil {
			log.Errorf("marking payment %v failed: %v", transfer.PaymentID, err)
		}
		return xerrors.Errorf("derived hash %v does not match linked hash %v for payment %v",
			derived, transfer.LinkedHash, transfer.PaymentID)
	}

	if ev.AppInstanceID != "" && ev.AppInstanceID != transfer.SenderAppID {
		if err := ts.dao.SetLinkedTransferReceiverApp(transfer.PaymentID, ev.AppInstanceID); err != nil {
			return err
		}
	}

	log.Infof("payment %v redeemed", transfer.PaymentID)
	return ts.dao.SetLinkedTransferStatus(transfer.PaymentID, common.TransferRedeemed)
}

// HandleUninstall reclaims the sender-side funds after the sender app comes
// down. Uninstalls of unrelated apps are ignored.
func (ts *TransferService) HandleUninstall(ctx context.Context, ev *engine.Event) error {
	transfer, err := ts.dao.FindLinkedTransferBySenderApp(ev.AppInstanceID)
	if err != nil {
		if err == dao.ErrNotFound {
			return nil
		}
		return err
	}

	if transfer.Status != string(common.TransferRedeemed) {
		log.Debugf("sender app %v uninstalled while payment %v is %v",
			ev.AppInstanceID, transfer.PaymentID, transfer.Status)
		return nil
	}

	log.Infof("payment %v reclaimed", transfer.PaymentID)
	return ts.dao.SetLinkedTransferStatus(transfer.PaymentID, common.TransferReclaimed)
}
