package registry

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/common"
)

// validateSwap checks the asset pair against the allowed-swap table and the
// proposed rate against the node's own, within AllowedDiscrepancyPct.
func (s *Service) validateSwap(ctx context.Context, proposal *common.AppProposal) error {
	from := proposal.InitiatorDepositTokenAddress
	to := proposal.ResponderDepositTokenAddress

	if !s.rates.SwapAllowed(from, to) {
		return xerrors.Errorf("swap from %v to %v is not valid, allowed swaps: %v: %w",
			from, to, s.rates.ValidSwaps(), common.ErrValidation)
	}

	if proposal.InitiatorDeposit.Sign() <= 0 {
		return xerrors.Errorf("swap initiator deposit %v is not positive: %w",
			proposal.InitiatorDeposit, common.ErrValidation)
	}

	derivedRate := proposal.ResponderDeposit.Div(proposal.InitiatorDeposit)

	ourRate, err := s.rates.GetOrFetchRate(ctx, from, to)
	if err != nil {
		return err
	}

	// |our rate - derived rate| * 100 / our rate = discrepancy pct
	discrepancyPct := ourRate.Sub(derivedRate).Abs().Mul(decimalHundred).Div(ourRate)
	if discrepancyPct.GreaterThan(AllowedDiscrepancyPct) {
		return xerrors.Errorf("derived rate %v differs from our rate %v by more than %v%%: %w",
			derivedRate, ourRate, AllowedDiscrepancyPct, common.ErrValidation)
	}

	log.Infof("derived rate %v is within %v%% of our rate %v", derivedRate, AllowedDiscrepancyPct, ourRate)
	return nil
}

// validateTransfer covers the unidirectional (virtual) transfer app: the
// responder leg carries no value and the initial state mirrors the deposits.
func (s *Service) validateTransfer(ctx context.Context, proposal *common.AppProposal) error {
	if !proposal.ResponderDeposit.IsZero() {
		return xerrors.Errorf("transfer app responder deposit %v is nonzero: %w",
			proposal.ResponderDeposit, common.ErrValidation)
	}
	if proposal.InitiatorDeposit.Sign() <= 0 {
		return xerrors.Errorf("transfer app initiator deposit %v is not positive: %w",
			proposal.InitiatorDeposit, common.ErrValidation)
	}

	state := &proposal.InitialState
	if err := checkPostFundState(state); err != nil {
		return err
	}

	if !state.Transfers[0].Amount.Equal(proposal.InitiatorDeposit) {
		return xerrors.Errorf("sender transfer %v differs from initiator deposit %v: %w",
			state.Transfers[0].Amount, proposal.InitiatorDeposit, common.ErrValidation)
	}
	if !state.Transfers[1].Amount.IsZero() {
		return xerrors.Errorf("recipient transfer %v is nonzero in initial state: %w",
			state.Transfers[1].Amount, common.ErrValidation)
	}

	return nil
}

// validateLinkedTransfer covers the hashed-preimage transfer app.
func (s *Service) validateLinkedTransfer(ctx context.Context, proposal *common.AppProposal) error {
	if proposal.ResponderDeposit.Sign() > 0 {
		return xerrors.Errorf("linked transfer responder deposit %v is nonzero: %w",
			proposal.ResponderDeposit, common.ErrValidation)
	}

	state := &proposal.InitialState
	if err := checkPostFundState(state); err != nil {
		return err
	}

	if state.LinkedHash == "" {
		return xerrors.Errorf("linked transfer carries no linked hash: %w", common.ErrValidation)
	}

	if state.Transfers[0].Amount.Sign() <= 0 {
		return xerrors.Errorf("linked transfer sender amount %v is not positive: %w",
			state.Transfers[0].Amount, common.ErrValidation)
	}
	if state.Transfers[1].Amount.Sign() < 0 {
		return xerrors.Errorf("linked transfer redeemer amount %v is negative: %w",
			state.Transfers[1].Amount, common.ErrValidation)
	}

	if !state.Transfers[0].Amount.Equal(proposal.InitiatorDeposit) ||
		!state.Transfers[1].Amount.Equal(proposal.ResponderDeposit) {
		return xerrors.Errorf("mismatch between deposits and initial state transfers: %w", common.ErrValidation)
	}

	return nil
}

func checkPostFundState(state *common.AppState) error {
	if state.Finalized {
		return xerrors.Errorf("initial state is finalized: %w", common.ErrValidation)
	}
	if !state.TurnNum.IsZero() {
		return xerrors.Errorf("initial state turn number %v is nonzero: %w", state.TurnNum, common.ErrValidation)
	}
	if state.Stage != common.StagePostFund {
		return xerrors.Errorf("initial state stage %v is not POST_FUND: %w", state.Stage, common.ErrValidation)
	}
	return nil
}
