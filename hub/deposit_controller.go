package hub

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/engine"
	"github.com/rqzrqh/channel_hub/util"
	"github.com/rqzrqh/channel_hub/validate"
)

// ChainProvider is the minimal on-chain surface the controllers need:
// balance reads for deposit validation and raw transaction broadcast for
// node-submitted withdrawals. Signing and key management live behind it.
type ChainProvider interface {
	BalanceOf(ctx context.Context, address string, assetID string) (decimal.Decimal, error)
	SendTransaction(ctx context.Context, tx MinimalTransaction) (string, error)
}

type MinimalTransaction struct {
	To    string
	Value decimal.Decimal
	Data  []byte
}

type DepositParameters struct {
	MultisigAddress string
	Amount          decimal.Decimal
	AssetID         string
}

type DepositController struct {
	api              engine.API
	provider         ChainProvider
	listener         *listener
	publicIdentifier string
}

func NewDepositController(api engine.API, provider ChainProvider, l *listener, publicIdentifier string) *DepositController {
	return &DepositController{
		api:              api,
		provider:         provider,
		listener:         l,
		publicIdentifier: publicIdentifier,
	}
}

// Deposit moves on-chain funds into the channel's free balance and verifies
// the engine credited exactly the requested amount.
func (dc *DepositController) Deposit(ctx context.Context, params DepositParameters) error {
	if err := dc.validateInputs(ctx, params); err != nil {
		return err
	}

	self := util.FreeBalanceAddress(dc.publicIdentifier)

	preBalances, err := dc.api.GetFreeBalanceState(ctx, params.MultisigAddress, params.AssetID)
	if err != nil {
		return xerrors.Errorf("free balance of %v: %w", params.MultisigAddress, err)
	}

	log.Infof("depositing %v of %v into %v", params.Amount, params.AssetID, params.MultisigAddress)

	// Listeners go on before the dispatch and come off on every exit path,
	// so no handler leaks across retries.
	confirmedID := dc.listener.on(engine.DepositConfirmedEvent, func(ev *engine.Event) {
		log.Infof("deposit confirmed for %v", ev.MultisigAddress)
	})
	failedID := dc.listener.on(engine.DepositFailedEvent, func(ev *engine.Event) {
		log.Errorf("deposit failed for %v: %v", ev.MultisigAddress, ev.Err)
	})
	defer func() {
		dc.listener.off(engine.DepositConfirmedEvent, confirmedID)
		dc.listener.off(engine.DepositFailedEvent, failedID)
	}()

	if _, err := dc.api.Deposit(ctx, engine.DepositParams{
		MultisigAddress: params.MultisigAddress,
		Amount:          params.Amount,
		AssetID:         params.AssetID,
	}); err != nil {
		return xerrors.Errorf("deposit into %v: %w", params.MultisigAddress, err)
	}

	postBalances, err := dc.api.GetFreeBalanceState(ctx, params.MultisigAddress, params.AssetID)
	if err != nil {
		return xerrors.Errorf("free balance of %v: %w", params.MultisigAddress, err)
	}

	diff := postBalances[self].Sub(preBalances[self])
	if !diff.Equal(params.Amount) {
		return xerrors.Errorf("deposit delta %v, requested %v: %w", diff, params.Amount, common.ErrDepositConsistency)
	}

	log.Infof("deposited %v of %v into %v", params.Amount, params.AssetID, params.MultisigAddress)
	return nil
}

func (dc *DepositController) validateInputs(ctx context.Context, params DepositParameters) error {
	depositAddr := util.FreeBalanceAddress(dc.publicIdentifier)
	onchainBalance, err := dc.provider.BalanceOf(ctx, depositAddr, params.AssetID)
	if err != nil {
		return xerrors.Errorf("onchain balance of %v: %w", depositAddr, err)
	}

	msg := validate.FirstError(
		validate.InvalidAddress(params.AssetID),
		validate.NotPositive(params.Amount),
		validate.NotLessThanOrEqualTo(params.Amount, onchainBalance),
	)
	if msg != "" {
		return xerrors.Errorf("%v: %w", msg, common.ErrValidation)
	}
	return nil
}
