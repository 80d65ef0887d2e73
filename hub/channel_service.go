package hub

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/dao"
	"github.com/rqzrqh/channel_hub/engine"
	"github.com/rqzrqh/channel_hub/lock"
	"github.com/rqzrqh/channel_hub/model"
	"github.com/rqzrqh/channel_hub/util"
)

// ChannelService owns the channel records and the collateral policy. All
// Channel/PaymentProfile mutations go through here.
type ChannelService struct {
	dao              *dao.Dao
	api              engine.API
	locks            *lock.Service
	publicIdentifier string
}

func NewChannelService(d *dao.Dao, api engine.API, locks *lock.Service, publicIdentifier string) *ChannelService {
	return &ChannelService{
		dao:              d,
		api:              api,
		locks:            locks,
		publicIdentifier: publicIdentifier,
	}
}

// Create starts the engine's channel-creation protocol with a counterparty.
// One channel per user: a second call for the same identifier fails.
func (cs *ChannelService) Create(ctx context.Context, counterpartyPubID string) (engine.CreateChannelResult, error) {
	existing, err := cs.dao.FindChannelByUser(counterpartyPubID)
	if err != nil && err != dao.ErrNotFound {
		return engine.CreateChannelResult{}, err
	}
	if existing != nil {
		return engine.CreateChannelResult{}, xerrors.Errorf("channel already exists for %v", counterpartyPubID)
	}

	return cs.api.CreateChannel(ctx, counterpartyPubID)
}

// Deposit funds the node side of an existing channel, holding deposit rights
// for the duration so a concurrent user deposit cannot race the multisig
// balance read.
func (cs *ChannelService) Deposit(ctx context.Context, multisigAddress string, amount decimal.Decimal, assetID string) (engine.DepositResult, error) {
	if _, err := cs.dao.FindChannelByMultisig(multisigAddress); err != nil {
		if err == dao.ErrNotFound {
			return engine.DepositResult{}, xerrors.Errorf("no channel exists for multisig %v", multisigAddress)
		}
		return engine.DepositResult{}, err
	}

	if err := cs.api.RequestDepositRights(ctx, multisigAddress, assetID); err != nil {
		return engine.DepositResult{}, xerrors.Errorf("request deposit rights on %v: %w", multisigAddress, err)
	}
	defer func() {
		if err := cs.api.RescindDepositRights(ctx, multisigAddress, assetID); err != nil {
			log.Errorf("rescind deposit rights on %v: %v", multisigAddress, err)
		}
	}()

	return cs.api.Deposit(ctx, engine.DepositParams{
		MultisigAddress: multisigAddress,
		Amount:          amount,
		AssetID:         assetID,
	})
}

// RequestCollateral tops the node-side free balance of a user channel up to
// its payment-profile target. amountOverride raises the floor for a single
// request (a payment larger than the profile minimum); pass zero to use the
// profile alone. The whole read-decide-deposit sequence runs under the
// channel's collateral lock.
func (cs *ChannelService) RequestCollateral(ctx context.Context, userPubID string, assetID string, amountOverride decimal.Decimal) error {
	return cs.locks.WithLock(ctx, "collateralize:"+userPubID, lock.DefaultTTL, func(ctx context.Context) error {
		return cs.requestCollateral(ctx, userPubID, assetID, amountOverride)
	})
}

func (cs *ChannelService) requestCollateral(ctx context.Context, userPubID string, assetID string, amountOverride decimal.Decimal) error {
	channel, err := cs.dao.FindChannelByUser(userPubID)
	if err != nil {
		if err == dao.ErrNotFound {
			return xerrors.Errorf("channel does not exist for user %v", userPubID)
		}
		return err
	}

	if channel.DepositInFlight {
		log.Infof("deposit already in flight for %v, skipping collateral request", userPubID)
		return nil
	}

	profile, err := cs.dao.GetPaymentProfile(userPubID, assetID)
	if err != nil {
		if err == dao.ErrNotFound {
			return xerrors.Errorf("profile does not exist for user %v and asset %v", userPubID, assetID)
		}
		return err
	}

	collateralNeeded := profile.MinimumMaintainedCollateral
	if amountOverride.GreaterThan(collateralNeeded) {
		collateralNeeded = amountOverride
	}

	freeBalance, err := cs.api.GetFreeBalanceState(ctx, channel.MultisigAddress, assetID)
	if err != nil {
		return xerrors.Errorf("free balance of %v: %w", channel.MultisigAddress, err)
	}
	nodeFreeBalance := freeBalance[util.FreeBalanceAddress(cs.publicIdentifier)]

	if !nodeFreeBalance.LessThan(collateralNeeded) {
		log.Infof("%v already has collateral of %v for asset %v", userPubID, nodeFreeBalance, assetID)
		return nil
	}

	amountDeposit := profile.AmountToCollateralize.Sub(nodeFreeBalance)
	if collateralNeeded.GreaterThan(profile.AmountToCollateralize) {
		amountDeposit = collateralNeeded.Sub(nodeFreeBalance)
	}
	if amountDeposit.Sign() <= 0 {
		return nil
	}

	log.Infof("collateralizing %v with %v, asset %v", channel.MultisigAddress, amountDeposit, assetID)

	if err := cs.SetInflightDeposit(userPubID, true); err != nil {
		return err
	}
	defer func() {
		if err := cs.SetInflightDeposit(userPubID, false); err != nil {
			log.Errorf("clearing inflight deposit flag for %v: %v", userPubID, err)
		}
	}()

	_, err = cs.Deposit(ctx, channel.MultisigAddress, amountDeposit, assetID)
	return err
}

func (cs *ChannelService) AddPaymentProfile(userPubID string, assetID string, minimumMaintainedCollateral, amountToCollateralize decimal.Decimal) (*model.PaymentProfile, error) {
	if minimumMaintainedCollateral.Sign() < 0 || amountToCollateralize.Sign() < 0 {
		return nil, xerrors.New("payment profile amounts must be non-negative")
	}

	profile := &model.PaymentProfile{
		AssetID:                     assetID,
		MinimumMaintainedCollateral: minimumMaintainedCollateral,
		AmountToCollateralize:       amountToCollateralize,
	}
	if err := cs.dao.AddPaymentProfile(userPubID, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// SetInflightDeposit toggles the best-effort double-deposit guard.
func (cs *ChannelService) SetInflightDeposit(userPubID string, inflight bool) error {
	return cs.dao.SetInflightDeposit(userPubID, inflight)
}

// MakeAvailable upserts the channel record for an engine channel-creation
// event. A record with the same multisig but different owners means the
// engine and the store disagree, which must fail loudly rather than be
// silently overwritten.
func (cs *ChannelService) MakeAvailable(ev *engine.Event) error {
	existing, err := cs.dao.FindChannelByMultisig(ev.MultisigAddress)
	if err != nil && err != dao.ErrNotFound {
		return err
	}

	if existing != nil {
		if !contains(ev.Owners, existing.NodePublicIdentifier) || !contains(ev.Owners, existing.UserPublicIdentifier) {
			return xerrors.Errorf("channel %v already created with different owners %v/%v, event owners %v",
				ev.MultisigAddress, existing.UserPublicIdentifier, existing.NodePublicIdentifier, ev.Owners)
		}
		log.Infof("channel %v already exists in database", ev.MultisigAddress)
		existing.Available = true
		return cs.dao.SaveChannel(existing)
	}

	log.Infof("creating new channel %v for %v", ev.MultisigAddress, ev.CounterpartyXpub)
	return cs.dao.SaveChannel(&model.Channel{
		UserPublicIdentifier: ev.CounterpartyXpub,
		NodePublicIdentifier: cs.publicIdentifier,
		MultisigAddress:      ev.MultisigAddress,
		Available:            true,
	})
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
