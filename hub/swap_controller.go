package hub

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/dao"
	"github.com/rqzrqh/channel_hub/engine"
	"github.com/rqzrqh/channel_hub/util"
	"github.com/rqzrqh/channel_hub/validate"
)

const (
	// InstallWaitTimeout bounds the wait for the counterparty's install or
	// reject-install answer; on expiry the dangling proposal is rejected.
	InstallWaitTimeout = 90 * time.Second

	uninstallPollRetries = 6
	uninstallPollDelay   = 500 * time.Millisecond
)

// CalculateExchange converts an amount through a rate, truncating toward
// zero. Never rounds up: the counterparty verifies the same floor.
func CalculateExchange(amount, swapRate decimal.Decimal) decimal.Decimal {
	return amount.Mul(swapRate).Floor()
}

type SwapParameters struct {
	MultisigAddress        string
	CounterpartyIdentifier string
	Amount                 decimal.Decimal
	FromAssetID            string
	ToAssetID              string
	SwapRate               decimal.Decimal
}

// SwapController drives the install->uninstall round trip of an exchange
// app. All per-swap state lives in a per-invocation context value, so one
// controller may run concurrent swaps with distinct counterparties.
type SwapController struct {
	dao              *dao.Dao
	api              engine.API
	waiter           *waiter
	network          string
	publicIdentifier string
}

func NewSwapController(d *dao.Dao, api engine.API, w *waiter, network string, publicIdentifier string) *SwapController {
	return &SwapController{
		dao:              d,
		api:              api,
		waiter:           w,
		network:          network,
		publicIdentifier: publicIdentifier,
	}
}

type swapBalances struct {
	from common.FreeBalance
	to   common.FreeBalance
}

func (sc *SwapController) Swap(ctx context.Context, params SwapParameters) error {
	if err := sc.validateSwap(ctx, params); err != nil {
		return err
	}

	// Snapshot both assets for the post-swap round-trip check.
	pre, err := sc.snapshotBalances(ctx, params.MultisigAddress, params.FromAssetID, params.ToAssetID)
	if err != nil {
		return err
	}

	appID, err := sc.proposeSwapInstall(ctx, params)
	if err != nil {
		return err
	}

	log.Infof("swap app %v installed, uninstalling without updating state", appID)

	if err := sc.uninstallAndAwait(ctx, appID); err != nil {
		return err
	}

	post, err := sc.snapshotBalances(ctx, params.MultisigAddress, params.FromAssetID, params.ToAssetID)
	if err != nil {
		return err
	}

	return sc.verifySwapOutcome(params, pre, post)
}

func (sc *SwapController) validateSwap(ctx context.Context, params SwapParameters) error {
	balances, err := sc.snapshotBalances(ctx, params.MultisigAddress, params.FromAssetID, params.ToAssetID)
	if err != nil {
		return err
	}

	userBalance := balances.from[util.FreeBalanceAddress(sc.publicIdentifier)]
	counterpartyBalance := balances.to[util.FreeBalanceAddress(params.CounterpartyIdentifier)]
	swappedAmount := CalculateExchange(params.Amount, params.SwapRate)

	msg := validate.FirstError(
		validate.InvalidAddress(params.FromAssetID),
		validate.InvalidAddress(params.ToAssetID),
		validate.NotLessThanOrEqualTo(params.Amount, userBalance),
		validate.NotLessThanOrEqualTo(swappedAmount, counterpartyBalance),
		validate.NotPositive(params.SwapRate),
	)
	if msg != "" {
		return xerrors.Errorf("%v: %w", msg, common.ErrValidation)
	}
	return nil
}

func (sc *SwapController) snapshotBalances(ctx context.Context, multisigAddress, fromAssetID, toAssetID string) (*swapBalances, error) {
	var balances swapBalances

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		fb, err := sc.api.GetFreeBalanceState(ctx, multisigAddress, fromAssetID)
		if err != nil {
			return xerrors.Errorf("free balance of %v asset %v: %w", multisigAddress, fromAssetID, err)
		}
		balances.from = fb
		return nil
	})
	eg.Go(func() error {
		fb, err := sc.api.GetFreeBalanceState(ctx, multisigAddress, toAssetID)
		if err != nil {
			return xerrors.Errorf("free balance of %v asset %v: %w", multisigAddress, toAssetID, err)
		}
		balances.to = fb
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &balances, nil
}

func (sc *SwapController) proposeSwapInstall(ctx context.Context, params SwapParameters) (string, error) {
	appInfo, err := sc.dao.FindAppByNameAndNetwork(common.SimpleTwoPartySwapAppName, sc.network)
	if err != nil {
		return "", xerrors.Errorf("swap app registry entry for network %v: %w", sc.network, err)
	}

	swappedAmount := CalculateExchange(params.Amount, params.SwapRate)

	log.Infof("installing swap app, swapping %v of %v for %v of %v",
		params.Amount, params.FromAssetID, swappedAmount, params.ToAssetID)

	// The initiator's transfer MUST come first, the counterparty's second.
	// The outcome computation on the other side indexes balances by position;
	// reversing the order credits the wrong asset and party.
	initialState := common.AppState{
		CoinTransfers: [2]common.CoinTransfer{
			{To: util.FreeBalanceAddress(sc.publicIdentifier), Amount: params.Amount},
			{To: util.FreeBalanceAddress(params.CounterpartyIdentifier), Amount: swappedAmount},
		},
	}

	res, err := sc.api.ProposeInstall(ctx, common.AppProposal{
		AppDefinition: appInfo.AppDefinitionAddress,
		ABIEncodings: common.ABIEncodings{
			StateEncoding:  appInfo.StateEncoding,
			ActionEncoding: appInfo.ActionEncoding,
		},
		InitialState:                 initialState,
		InitiatorDeposit:             params.Amount,
		InitiatorDepositTokenAddress: params.FromAssetID,
		ResponderDeposit:             swappedAmount,
		ResponderDepositTokenAddress: params.ToAssetID,
		OutcomeType:                  common.OutcomeType(appInfo.OutcomeType),
		ProposedToIdentifier:         params.CounterpartyIdentifier,
		Timeout:                      decimal.Zero,
	})
	if err != nil {
		return "", xerrors.Errorf("propose swap install: %w", err)
	}

	// The install event can race the RPC response; the waiter hands any
	// outcome that arrived first over at registration.
	sc.waiter.register(res.AppInstanceID)
	if _, err := sc.waiter.wait(ctx, res.AppInstanceID, InstallWaitTimeout); err != nil {
		if xerrors.Is(err, ErrWaitTimeout) {
			// Reject the dangling proposal so the counterparty cannot
			// install it after we gave up.
			if rejErr := sc.api.RejectInstall(ctx, res.AppInstanceID); rejErr != nil {
				log.Errorf("rejecting timed-out swap proposal %v: %v", res.AppInstanceID, rejErr)
			}
		}
		return "", err
	}

	return res.AppInstanceID, nil
}

// uninstallAndAwait issues the uninstall and polls until the app disappears
// from the live instance list; the engine's reads are not synchronously
// consistent with its uninstall RPC.
func (sc *SwapController) uninstallAndAwait(ctx context.Context, appID string) error {
	if err := sc.api.Uninstall(ctx, appID); err != nil {
		return xerrors.Errorf("uninstall %v: %w", appID, err)
	}

	for retries := 0; ; retries++ {
		apps, err := sc.api.GetAppInstances(ctx)
		if err != nil {
			return xerrors.Errorf("get app instances: %w", err)
		}

		installed := false
		for _, app := range apps {
			if app.IdentityHash == appID {
				installed = true
				break
			}
		}
		if !installed {
			return nil
		}
		if retries >= uninstallPollRetries {
			return xerrors.Errorf("app %v still installed after %v retries", appID, retries)
		}

		log.Infof("app %v still in the open apps, retrying...", appID)
		select {
		case <-time.After(uninstallPollDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// verifySwapOutcome is a sanity check on the counterparty and the engine:
// the from asset must have decreased by exactly the swap amount and the to
// asset increased by exactly the floored exchange amount.
func (sc *SwapController) verifySwapOutcome(params SwapParameters, pre, post *swapBalances) error {
	self := util.FreeBalanceAddress(sc.publicIdentifier)

	diffFrom := pre.from[self].Sub(post.from[self])
	diffTo := post.to[self].Sub(pre.to[self])
	swappedAmount := CalculateExchange(params.Amount, params.SwapRate)

	if !diffFrom.Equal(params.Amount) || !diffTo.Equal(swappedAmount) {
		return xerrors.Errorf("from delta %v (want %v), to delta %v (want %v): %w",
			diffFrom, params.Amount, diffTo, swappedAmount, common.ErrSwapIntegrity)
	}
	return nil
}
