// Package registry decides whether an incoming app-install proposal, direct
// or virtual, is safe for the node to join. Every validation failure resolves
// into a reject-install RPC back to the engine; an exception escaping to the
// engine would corrupt protocol state.
package registry

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/dao"
	"github.com/rqzrqh/channel_hub/engine"
	"github.com/rqzrqh/channel_hub/model"
	"github.com/rqzrqh/channel_hub/swaprate"
	"github.com/rqzrqh/channel_hub/util"
	"github.com/rqzrqh/channel_hub/validate"
)

var log = logging.Logger("registry")

// AllowedDiscrepancyPct bounds how far a proposed swap rate may drift from
// the node's own rate.
var AllowedDiscrepancyPct = decimal.NewFromInt(5)

var decimalHundred = decimal.NewFromInt(100)

// CollateralRequester triggers an asynchronous top-up of a user channel.
type CollateralRequester interface {
	RequestCollateral(ctx context.Context, userPubID string, assetID string, amount decimal.Decimal) error
}

type kindValidator func(ctx context.Context, proposal *common.AppProposal) error

type Service struct {
	dao              *dao.Dao
	api              engine.API
	rates            *swaprate.Service
	collateral       CollateralRequester
	publicIdentifier string

	validators map[common.AppKind]kindValidator
}

func NewService(
	d *dao.Dao,
	api engine.API,
	rates *swaprate.Service,
	collateral CollateralRequester,
	publicIdentifier string,
) *Service {
	s := &Service{
		dao:              d,
		api:              api,
		rates:            rates,
		collateral:       collateral,
		publicIdentifier: publicIdentifier,
	}

	s.validators = map[common.AppKind]kindValidator{
		common.AppSimpleTwoPartySwap:           s.validateSwap,
		common.AppUnidirectionalTransfer:       s.validateTransfer,
		common.AppUnidirectionalLinkedTransfer: s.validateLinkedTransfer,
	}

	return s
}

// AllowOrReject validates a direct install proposal and answers the engine
// with either an install or a reject-install RPC.
func (s *Service) AllowOrReject(ctx context.Context, ev *engine.Event) error {
	proposal := ev.Proposal
	if proposal == nil {
		return xerrors.New("propose install event carried no proposal")
	}

	if err := s.VerifyAppProposal(ctx, proposal, ev.From); err != nil {
		log.Errorf("proposed app validation failed, rejecting install of %v: %v", proposal.AppInstanceID, err)
		if rejErr := s.api.RejectInstall(ctx, proposal.AppInstanceID); rejErr != nil {
			return xerrors.Errorf("reject install of %v: %w", proposal.AppInstanceID, rejErr)
		}
		return err
	}

	if err := s.api.Install(ctx, proposal.AppInstanceID); err != nil {
		return xerrors.Errorf("install %v: %w", proposal.AppInstanceID, err)
	}
	return nil
}

// AllowOrRejectVirtual validates a virtual install proposal the node would
// intermediate. The install itself is driven by the endpoints, so only a
// rejection produces a follow-up RPC.
func (s *Service) AllowOrRejectVirtual(ctx context.Context, ev *engine.Event) error {
	proposal := ev.Proposal
	if proposal == nil {
		return xerrors.New("propose install virtual event carried no proposal")
	}

	if err := s.VerifyVirtualAppProposal(ctx, proposal, ev.From); err != nil {
		log.Errorf("proposed virtual app validation failed, rejecting install of %v: %v", proposal.AppInstanceID, err)
		if rejErr := s.api.RejectInstall(ctx, proposal.AppInstanceID); rejErr != nil {
			return xerrors.Errorf("reject install of %v: %w", proposal.AppInstanceID, rejErr)
		}
		return err
	}
	return nil
}

// VerifyAppProposal runs the full validation pipeline for a direct proposal.
func (s *Service) VerifyAppProposal(ctx context.Context, proposal *common.AppProposal, initiatorIdentifier string) error {
	if initiatorIdentifier == s.publicIdentifier {
		log.Infof("received proposal %v from our own node", proposal.AppInstanceID)
		return nil
	}

	entry, err := s.matchesRegistry(proposal)
	if err != nil {
		return err
	}

	if !entry.AllowNodeInstall {
		return xerrors.Errorf("app %v: %w", entry.Name, common.ErrInstallNotAllowed)
	}

	if err := s.commonValidation(ctx, proposal, initiatorIdentifier); err != nil {
		return err
	}

	kind := common.AppKindFromName(entry.Name)
	validator, ok := s.validators[kind]
	if !ok {
		return xerrors.Errorf("no validator for app %v: %w", entry.Name, common.ErrUnknownApp)
	}
	if err := validator(ctx, proposal); err != nil {
		return err
	}

	if kind == common.AppUnidirectionalLinkedTransfer {
		if err := s.saveLinkedTransfer(proposal, initiatorIdentifier); err != nil {
			return xerrors.Errorf("save linked transfer: %w", err)
		}
	}

	log.Infof("validation completed for app %v proposal %v", entry.Name, proposal.AppInstanceID)
	return nil
}

// VerifyVirtualAppProposal additionally checks the recipient channel's
// collateral, triggering an asynchronous top-up when short.
func (s *Service) VerifyVirtualAppProposal(ctx context.Context, proposal *common.AppProposal, initiatorIdentifier string) error {
	entry, err := s.matchesRegistry(proposal)
	if err != nil {
		return err
	}

	if err := s.commonValidation(ctx, proposal, initiatorIdentifier); err != nil {
		return err
	}

	recipient, err := s.dao.FindChannelByUser(proposal.ProposedToIdentifier)
	if err != nil {
		return xerrors.Errorf("recipient channel for %v: %w", proposal.ProposedToIdentifier, err)
	}

	freeBalance, err := s.api.GetFreeBalanceState(ctx, recipient.MultisigAddress, proposal.InitiatorDepositTokenAddress)
	if err != nil {
		return xerrors.Errorf("free balance of %v: %w", recipient.MultisigAddress, err)
	}

	collateralAvailable := freeBalance[util.FreeBalanceAddress(s.publicIdentifier)]
	if collateralAvailable.LessThan(proposal.InitiatorDeposit) {
		// Top up out of band; the client retries the proposal once the
		// channel is collateralized.
		go func() {
			err := s.collateral.RequestCollateral(
				context.Background(),
				proposal.ProposedToIdentifier,
				proposal.InitiatorDepositTokenAddress,
				proposal.InitiatorDeposit,
			)
			if err != nil {
				log.Errorf("collateral top-up for %v failed: %v", proposal.ProposedToIdentifier, err)
			}
		}()
		return xerrors.Errorf("responder channel %v has %v of %v: %w",
			recipient.MultisigAddress, collateralAvailable, proposal.InitiatorDepositTokenAddress,
			common.ErrInsufficientCollateral)
	}

	kind := common.AppKindFromName(entry.Name)
	if validator, ok := s.validators[kind]; ok {
		if err := validator(ctx, proposal); err != nil {
			return err
		}
	}

	if kind == common.AppUnidirectionalTransfer {
		if err := s.saveLinkedTransfer(proposal, initiatorIdentifier); err != nil {
			return xerrors.Errorf("save transfer: %w", err)
		}
	}

	log.Infof("validation completed for virtual app %v proposal %v", entry.Name, proposal.AppInstanceID)
	return nil
}

func (s *Service) matchesRegistry(proposal *common.AppProposal) (*model.AppRegistry, error) {
	entry, err := s.dao.FindAppByDefinition(proposal.AppDefinition)
	if err != nil {
		if err == dao.ErrNotFound {
			return nil, xerrors.Errorf("definition %v: %w", proposal.AppDefinition, common.ErrUnknownApp)
		}
		return nil, err
	}

	if proposal.ABIEncodings.ActionEncoding != entry.ActionEncoding ||
		proposal.ABIEncodings.StateEncoding != entry.StateEncoding {
		return nil, xerrors.Errorf("encodings of proposal %v differ from registry entry %v: %w",
			proposal.AppInstanceID, entry.Name, common.ErrRegistryMismatch)
	}

	return entry, nil
}

func (s *Service) commonValidation(ctx context.Context, proposal *common.AppProposal, initiatorIdentifier string) error {
	msg := validate.FirstError(
		validate.NotNegative(proposal.Timeout),
		validate.NotNegative(proposal.InitiatorDeposit),
		validate.NotNegative(proposal.ResponderDeposit),
	)
	if msg != "" {
		return xerrors.Errorf("%v: %w", msg, common.ErrValidation)
	}

	if proposal.InitiatorDepositTokenAddress != "" {
		if msg := validate.InvalidAddress(proposal.InitiatorDepositTokenAddress); msg != "" {
			return xerrors.Errorf("initiatorDepositTokenAddress: %v: %w", msg, common.ErrValidation)
		}
	}
	if proposal.ResponderDepositTokenAddress != "" {
		if msg := validate.InvalidAddress(proposal.ResponderDepositTokenAddress); msg != "" {
			return xerrors.Errorf("responderDepositTokenAddress: %v: %w", msg, common.ErrValidation)
		}
	}

	if proposal.InitiatorDeposit.IsZero() && proposal.ResponderDeposit.IsZero() {
		return xerrors.Errorf("refusing to install app with two zero value deposits: %w", common.ErrValidation)
	}

	if err := s.checkIntermediaries(proposal); err != nil {
		return err
	}

	if err := s.checkDuplicateIdentityHash(ctx, proposal); err != nil {
		return err
	}

	// Initiator must cover its own deposit out of its live free balance.
	initiatorChannel, err := s.dao.FindChannelByUser(initiatorIdentifier)
	if err != nil {
		return xerrors.Errorf("initiator channel for %v: %w", initiatorIdentifier, err)
	}

	initiatorBalances, err := s.api.GetFreeBalanceState(ctx, initiatorChannel.MultisigAddress, proposal.InitiatorDepositTokenAddress)
	if err != nil {
		return xerrors.Errorf("free balance of %v: %w", initiatorChannel.MultisigAddress, err)
	}
	initiatorFreeBalance := initiatorBalances[util.FreeBalanceAddress(initiatorIdentifier)]
	if initiatorFreeBalance.LessThan(proposal.InitiatorDeposit) {
		return xerrors.Errorf("initiator free balance %v is below deposit %v: %w",
			initiatorFreeBalance, proposal.InitiatorDeposit, common.ErrInsufficientFunds)
	}

	// Responder side: ourselves when the proposal targets the node, the named
	// responder channel otherwise.
	responderMultisig := initiatorChannel.MultisigAddress
	if proposal.ProposedToIdentifier != s.publicIdentifier {
		responderChannel, err := s.dao.FindChannelByUser(proposal.ProposedToIdentifier)
		if err != nil {
			return xerrors.Errorf("responder channel for %v: %w", proposal.ProposedToIdentifier, err)
		}
		responderMultisig = responderChannel.MultisigAddress
	}

	responderBalances, err := s.api.GetFreeBalanceState(ctx, responderMultisig, proposal.ResponderDepositTokenAddress)
	if err != nil {
		return xerrors.Errorf("free balance of %v: %w", responderMultisig, err)
	}
	responderFreeBalance := responderBalances[util.FreeBalanceAddress(proposal.ProposedToIdentifier)]
	if responderFreeBalance.LessThan(proposal.ResponderDeposit) {
		return xerrors.Errorf("responder free balance %v is below deposit %v: %w",
			responderFreeBalance, proposal.ResponderDeposit, common.ErrInsufficientFunds)
	}

	return nil
}

func (s *Service) checkIntermediaries(proposal *common.AppProposal) error {
	if !proposal.Virtual() {
		return nil
	}

	found := 0
	for _, intermediary := range proposal.Intermediaries {
		if intermediary == s.publicIdentifier {
			found++
		}
	}
	if found != 1 {
		return xerrors.Errorf("node appears %v times in proposed intermediaries: %w", found, common.ErrValidation)
	}
	return nil
}

func (s *Service) checkDuplicateIdentityHash(ctx context.Context, proposal *common.AppProposal) error {
	apps, err := s.api.GetAppInstances(ctx)
	if err != nil {
		return xerrors.Errorf("get app instances: %w", err)
	}
	for _, app := range apps {
		if app.IdentityHash == proposal.AppInstanceID {
			return xerrors.Errorf("duplicate app id %v detected: %w", proposal.AppInstanceID, common.ErrValidation)
		}
	}
	return nil
}

func (s *Service) saveLinkedTransfer(proposal *common.AppProposal, initiatorIdentifier string) error {
	paymentID := proposal.InitialState.PaymentID
	if paymentID == "" {
		paymentID = util.RandHexStr(64)
	}

	return s.dao.SaveLinkedTransfer(&model.LinkedTransfer{
		PaymentID:          paymentID,
		LinkedHash:         proposal.InitialState.LinkedHash,
		SenderIdentifier:   initiatorIdentifier,
		ReceiverIdentifier: proposal.ProposedToIdentifier,
		SenderAppID:        proposal.AppInstanceID,
		Amount:             proposal.InitiatorDeposit,
		AssetID:            proposal.InitiatorDepositTokenAddress,
		Status:             string(common.TransferPending),
	})
}
