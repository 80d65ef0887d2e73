package engine

import (
	"github.com/rqzrqh/channel_hub/common"
)

type EventName string

const (
	CreateChannelEvent         EventName = "CREATE_CHANNEL_EVENT"
	InstallEvent               EventName = "INSTALL_EVENT"
	RejectInstallEvent         EventName = "REJECT_INSTALL_EVENT"
	UninstallEvent             EventName = "UNINSTALL_EVENT"
	UpdateStateEvent           EventName = "UPDATE_STATE_EVENT"
	ProposeInstallEvent        EventName = "PROPOSE_INSTALL_EVENT"
	ProposeInstallVirtualEvent EventName = "PROPOSE_INSTALL_VIRTUAL_EVENT"
	DepositConfirmedEvent      EventName = "DEPOSIT_CONFIRMED_EVENT"
	DepositFailedEvent         EventName = "DEPOSIT_FAILED_EVENT"
	DepositStartedEvent        EventName = "DEPOSIT_STARTED_EVENT"
	WithdrawalConfirmedEvent   EventName = "WITHDRAWAL_CONFIRMED_EVENT"
	WithdrawalFailedEvent      EventName = "WITHDRAWAL_FAILED_EVENT"
)

// Event is one engine notification. Only the fields relevant to the named
// event are populated.
type Event struct {
	Name EventName `json:"name"`
	// From is the public identifier of the party that triggered the event.
	From string `json:"from,omitempty"`

	AppInstanceID string `json:"appInstanceId,omitempty"`

	// CREATE_CHANNEL_EVENT
	MultisigAddress  string   `json:"multisigAddress,omitempty"`
	Owners           []string `json:"owners,omitempty"`
	CounterpartyXpub string   `json:"counterpartyXpub,omitempty"`

	// PROPOSE_INSTALL_EVENT / PROPOSE_INSTALL_VIRTUAL_EVENT / REJECT_INSTALL_EVENT
	Proposal *common.AppProposal `json:"proposal,omitempty"`

	// UPDATE_STATE_EVENT
	NewState *common.AppState       `json:"newState,omitempty"`
	Action   *common.TransferAction `json:"action,omitempty"`

	// DEPOSIT_* / WITHDRAWAL_*
	AssetID string `json:"assetId,omitempty"`
	Err     string `json:"error,omitempty"`
}
