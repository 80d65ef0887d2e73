package common

import (
	"github.com/shopspring/decimal"
)

// AppKind enumerates the conditional applications this hub knows how to
// validate and install.
type AppKind int

const (
	AppUnknown AppKind = iota
	AppSimpleTwoPartySwap
	AppUnidirectionalTransfer
	AppUnidirectionalLinkedTransfer
)

const (
	SimpleTwoPartySwapAppName           = "SimpleTwoPartySwapApp"
	UnidirectionalTransferAppName       = "UnidirectionalTransferApp"
	UnidirectionalLinkedTransferAppName = "UnidirectionalLinkedTransferApp"
)

func AppKindFromName(name string) AppKind {
	switch name {
	case SimpleTwoPartySwapAppName:
		return AppSimpleTwoPartySwap
	case UnidirectionalTransferAppName:
		return AppUnidirectionalTransfer
	case UnidirectionalLinkedTransferAppName:
		return AppUnidirectionalLinkedTransfer
	default:
		return AppUnknown
	}
}

func (k AppKind) String() string {
	switch k {
	case AppSimpleTwoPartySwap:
		return SimpleTwoPartySwapAppName
	case AppUnidirectionalTransfer:
		return UnidirectionalTransferAppName
	case AppUnidirectionalLinkedTransfer:
		return UnidirectionalLinkedTransferAppName
	default:
		return "UnknownApp"
	}
}

// OutcomeType is the on-chain interpretation rule for converting an app's
// final state into a payout split.
type OutcomeType int

const (
	OutcomeTwoPartyFixed OutcomeType = iota
	OutcomeMultiAssetMultiPartyCoinTransfer
	OutcomeSingleAssetTwoPartyCoinTransfer
)

// TransferStage mirrors the stage field of the unidirectional transfer app
// state machines.
type TransferStage int

const (
	StagePostFund TransferStage = iota
	StagePaymentClaimed
	StageChannelClosed
)

// TransferStatus is the lifecycle of a linked-transfer record.
type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferRedeemed  TransferStatus = "REDEEMED"
	TransferReclaimed TransferStatus = "RECLAIMED"
	TransferFailed    TransferStatus = "FAILED"
)

// CoinTransfer is a single (recipient, amount) leg of an app state.
type CoinTransfer struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// ABIEncodings pins the state/action encodings an app instance must carry.
type ABIEncodings struct {
	StateEncoding  string `json:"stateEncoding"`
	ActionEncoding string `json:"actionEncoding"`
}

// AppProposal carries the install parameters proposed by a counterparty,
// direct or virtual. Intermediaries is empty for direct installs.
type AppProposal struct {
	AppInstanceID                string          `json:"appInstanceId"`
	AppDefinition                string          `json:"appDefinition"`
	ABIEncodings                 ABIEncodings    `json:"abiEncodings"`
	InitialState                 AppState        `json:"initialState"`
	InitiatorDeposit             decimal.Decimal `json:"initiatorDeposit"`
	InitiatorDepositTokenAddress string          `json:"initiatorDepositTokenAddress"`
	ResponderDeposit             decimal.Decimal `json:"responderDeposit"`
	ResponderDepositTokenAddress string          `json:"responderDepositTokenAddress"`
	OutcomeType                  OutcomeType     `json:"outcomeType"`
	ProposedToIdentifier         string          `json:"proposedToIdentifier"`
	Intermediaries               []string        `json:"intermediaries,omitempty"`
	Timeout                      decimal.Decimal `json:"timeout"`
}

func (p *AppProposal) Virtual() bool {
	return len(p.Intermediaries) > 0
}

// AppState is the union of the initial-state fields used by the supported
// apps. Transfers[0] is always the sender leg, Transfers[1] the recipient.
type AppState struct {
	CoinTransfers [2]CoinTransfer `json:"coinTransfers"`
	Transfers     [2]CoinTransfer `json:"transfers"`
	LinkedHash    string          `json:"linkedHash,omitempty"`
	PaymentID     string          `json:"paymentId,omitempty"`
	TurnNum       decimal.Decimal `json:"turnNum"`
	Finalized     bool            `json:"finalized"`
	Stage         TransferStage   `json:"stage"`
}

// AppInstance is the engine's view of an installed app.
type AppInstance struct {
	IdentityHash  string   `json:"identityHash"`
	AppDefinition string   `json:"appDefinition"`
	State         AppState `json:"latestState"`
}

// FreeBalance maps a free-balance address to the spendable amount for one
// (multisig, asset) pair.
type FreeBalance map[string]decimal.Decimal

// AllowedSwap is one permitted (from, to) asset pair.
type AllowedSwap struct {
	From string `json:"from"`
	To   string `json:"to"`
}
