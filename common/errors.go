package common

import "golang.org/x/xerrors"

// Error taxonomy shared by the validators and controllers. Proposal
// validation failures always resolve into a reject-install RPC; consistency
// failures (ErrSwapIntegrity and friends) indicate engine/client state
// divergence and must never be retried automatically.
var (
	ErrValidation             = xerrors.New("invalid parameters")
	ErrInsufficientFunds      = xerrors.New("insufficient funds")
	ErrInsufficientCollateral = xerrors.New("insufficient collateral, retry after channel has been collateralized")
	ErrUnknownApp             = xerrors.New("app does not exist in registry")
	ErrRegistryMismatch       = xerrors.New("proposed app does not match registry")
	ErrInstallNotAllowed      = xerrors.New("app is not allowed to be installed on the node")
	ErrSwapIntegrity          = xerrors.New("invalid final swap amounts")
	ErrDepositConsistency     = xerrors.New("free balance was not increased by the deposit amount")
)
