package hub

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/dao"
	"github.com/rqzrqh/channel_hub/engine"
	"github.com/rqzrqh/channel_hub/model"
	"github.com/rqzrqh/channel_hub/util"
	"github.com/rqzrqh/channel_hub/validate"
)

type WithdrawParameters struct {
	MultisigAddress      string
	UserPublicIdentifier string
	Amount               decimal.Decimal
	AssetID              string
	Recipient            string
	// NodeSubmitted makes the node broadcast the withdrawal transaction on
	// behalf of the user instead of handing the commitment back.
	NodeSubmitted bool
}

type WithdrawalController struct {
	dao      *dao.Dao
	api      engine.API
	provider ChainProvider
}

func NewWithdrawalController(d *dao.Dao, api engine.API, provider ChainProvider) *WithdrawalController {
	return &WithdrawalController{
		dao:      d,
		api:      api,
		provider: provider,
	}
}

// Withdraw moves free balance back on chain. The pending record persists
// before dispatch so a crashed flow is resumed, not re-proposed.
func (wc *WithdrawalController) Withdraw(ctx context.Context, params WithdrawParameters) (string, error) {
	if err := wc.validateInputs(ctx, params); err != nil {
		return "", err
	}

	record := &model.Withdrawal{
		UserPublicIdentifier: params.UserPublicIdentifier,
		Recipient:            params.Recipient,
		AssetID:              params.AssetID,
		Amount:               params.Amount,
		NodeSubmitted:        params.NodeSubmitted,
	}
	if err := wc.dao.UpsertWithdrawal(record); err != nil {
		return "", xerrors.Errorf("persist withdrawal for %v: %w", params.UserPublicIdentifier, err)
	}

	return wc.dispatch(ctx, params)
}

func (wc *WithdrawalController) dispatch(ctx context.Context, params WithdrawParameters) (string, error) {
	res, err := wc.api.Withdraw(ctx, engine.WithdrawParams{
		MultisigAddress: params.MultisigAddress,
		Amount:          params.Amount,
		AssetID:         params.AssetID,
		Recipient:       params.Recipient,
	})
	if err != nil {
		return "", xerrors.Errorf("withdraw from %v: %w", params.MultisigAddress, err)
	}

	txHash := res.TxHash
	if params.NodeSubmitted {
		txHash, err = wc.provider.SendTransaction(ctx, MinimalTransaction{
			To:    params.Recipient,
			Value: params.Amount,
		})
		if err != nil {
			return "", xerrors.Errorf("broadcast withdrawal for %v: %w", params.UserPublicIdentifier, err)
		}
	}

	if err := wc.dao.MarkWithdrawalConfirmed(params.UserPublicIdentifier, txHash); err != nil {
		return "", err
	}
	return txHash, nil
}

// ResumePending re-dispatches withdrawals interrupted by an engine or
// network reconnection, bumping each record's retry counter.
func (wc *WithdrawalController) ResumePending(ctx context.Context) error {
	pending, err := wc.dao.FindPendingWithdrawals()
	if err != nil {
		return err
	}

	for _, record := range pending {
		channel, err := wc.dao.FindChannelByUser(record.UserPublicIdentifier)
		if err != nil {
			log.Errorf("resuming withdrawal for %v: %v", record.UserPublicIdentifier, err)
			continue
		}

		if err := wc.dao.BumpWithdrawalRetry(record.UserPublicIdentifier); err != nil {
			return err
		}

		log.Infof("resuming withdrawal of %v for %v, retry %v",
			record.Amount, record.UserPublicIdentifier, record.Retry+1)

		_, err = wc.dispatch(ctx, WithdrawParameters{
			MultisigAddress:      channel.MultisigAddress,
			UserPublicIdentifier: record.UserPublicIdentifier,
			Amount:               record.Amount,
			AssetID:              record.AssetID,
			Recipient:            record.Recipient,
			NodeSubmitted:        record.NodeSubmitted,
		})
		if err != nil {
			log.Errorf("resumed withdrawal for %v failed: %v", record.UserPublicIdentifier, err)
		}
	}
	return nil
}

func (wc *WithdrawalController) validateInputs(ctx context.Context, params WithdrawParameters) error {
	freeBalance, err := wc.api.GetFreeBalanceState(ctx, params.MultisigAddress, params.AssetID)
	if err != nil {
		return xerrors.Errorf("free balance of %v: %w", params.MultisigAddress, err)
	}
	available := freeBalance[util.FreeBalanceAddress(params.UserPublicIdentifier)]

	msg := validate.FirstError(
		validate.InvalidAddress(params.AssetID),
		validate.InvalidAddress(params.Recipient),
		validate.NotPositive(params.Amount),
		validate.NotLessThanOrEqualTo(params.Amount, available),
	)
	if msg != "" {
		return xerrors.Errorf("%v: %w", msg, common.ErrValidation)
	}
	return nil
}
