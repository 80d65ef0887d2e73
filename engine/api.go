// Package engine is the RPC façade over the external multi-party channel
// engine. The engine performs the actual protocol execution (signature
// collection, dispute logic, multisig deployment); this hub only dispatches
// methods and consumes events.
package engine

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/rqzrqh/channel_hub/common"
)

type CreateChannelResult struct {
	MultisigAddress string `json:"multisigAddress"`
}

type DepositParams struct {
	MultisigAddress string          `json:"multisigAddress"`
	Amount          decimal.Decimal `json:"amount"`
	AssetID         string          `json:"assetId"`
}

type DepositResult struct {
	MultisigBalance decimal.Decimal `json:"multisigBalance"`
}

type WithdrawParams struct {
	MultisigAddress string          `json:"multisigAddress"`
	Amount          decimal.Decimal `json:"amount"`
	AssetID         string          `json:"assetId"`
	Recipient       string          `json:"recipient"`
}

type WithdrawResult struct {
	TxHash string `json:"txhash"`
}

type ProposeInstallResult struct {
	AppInstanceID string `json:"appInstanceId"`
}

type StateChannel struct {
	MultisigAddress string   `json:"multisigAddress"`
	Owners          []string `json:"owners"`
}

// API is the set of channel-engine methods this hub consumes. Method names
// map to the engine's chan_* RPC surface under the "chan" namespace.
type API interface {
	PublicIdentifier(ctx context.Context) (string, error)

	CreateChannel(ctx context.Context, counterpartyXpub string) (CreateChannelResult, error)
	Deposit(ctx context.Context, params DepositParams) (DepositResult, error)
	Withdraw(ctx context.Context, params WithdrawParams) (WithdrawResult, error)

	ProposeInstall(ctx context.Context, proposal common.AppProposal) (ProposeInstallResult, error)
	Install(ctx context.Context, appInstanceID string) error
	InstallVirtual(ctx context.Context, appInstanceID string, intermediaries []string) error
	RejectInstall(ctx context.Context, appInstanceID string) error
	Uninstall(ctx context.Context, appInstanceID string) error
	UninstallVirtual(ctx context.Context, appInstanceID string, intermediary string) error
	TakeAction(ctx context.Context, appInstanceID string, action json.RawMessage) (common.AppState, error)
	UpdateState(ctx context.Context, appInstanceID string, state common.AppState) (common.AppState, error)

	GetFreeBalanceState(ctx context.Context, multisigAddress string, assetID string) (common.FreeBalance, error)
	GetAppInstances(ctx context.Context) ([]common.AppInstance, error)
	GetProposedAppInstances(ctx context.Context) ([]common.AppProposal, error)
	GetState(ctx context.Context, appInstanceID string) (common.AppState, error)
	GetStateChannel(ctx context.Context, multisigAddress string) (StateChannel, error)

	RequestDepositRights(ctx context.Context, multisigAddress string, assetID string) error
	RescindDepositRights(ctx context.Context, multisigAddress string, assetID string) error

	Events(ctx context.Context) (<-chan Event, error)
}

// Struct is the go-jsonrpc client shell for API.
type Struct struct {
	Internal struct {
		PublicIdentifier func(ctx context.Context) (string, error)

		CreateChannel func(ctx context.Context, counterpartyXpub string) (CreateChannelResult, error)
		Deposit       func(ctx context.Context, params DepositParams) (DepositResult, error)
		Withdraw      func(ctx context.Context, params WithdrawParams) (WithdrawResult, error)

		ProposeInstall   func(ctx context.Context, proposal common.AppProposal) (ProposeInstallResult, error)
		Install          func(ctx context.Context, appInstanceID string) error
		InstallVirtual   func(ctx context.Context, appInstanceID string, intermediaries []string) error
		RejectInstall    func(ctx context.Context, appInstanceID string) error
		Uninstall        func(ctx context.Context, appInstanceID string) error
		UninstallVirtual func(ctx context.Context, appInstanceID string, intermediary string) error
		TakeAction       func(ctx context.Context, appInstanceID string, action json.RawMessage) (common.AppState, error)
		UpdateState      func(ctx context.Context, appInstanceID string, state common.AppState) (common.AppState, error)

		GetFreeBalanceState     func(ctx context.Context, multisigAddress string, assetID string) (common.FreeBalance, error)
		GetAppInstances         func(ctx context.Context) ([]common.AppInstance, error)
		GetProposedAppInstances func(ctx context.Context) ([]common.AppProposal, error)
		GetState                func(ctx context.Context, appInstanceID string) (common.AppState, error)
		GetStateChannel         func(ctx context.Context, multisigAddress string) (StateChannel, error)

		RequestDepositRights func(ctx context.Context, multisigAddress string, assetID string) error
		RescindDepositRights func(ctx context.Context, multisigAddress string, assetID string) error

		Events func(ctx context.Context) (<-chan Event, error)
	}
}

func (s *Struct) PublicIdentifier(ctx context.Context) (string, error) {
	return s.Internal.PublicIdentifier(ctx)
}

func (s *Struct) CreateChannel(ctx context.Context, counterpartyXpub string) (CreateChannelResult, error) {
	return s.Internal.CreateChannel(ctx, counterpartyXpub)
}

func (s *Struct) Deposit(ctx context.Context, params DepositParams) (DepositResult, error) {
	return s.Internal.Deposit(ctx, params)
}

func (s *Struct) Withdraw(ctx context.Context, params WithdrawParams) (WithdrawResult, error) {
	return s.Internal.Withdraw(ctx, params)
}

func (s *Struct) ProposeInstall(ctx context.Context, proposal common.AppProposal) (ProposeInstallResult, error) {
	return s.Internal.ProposeInstall(ctx, proposal)
}

func (s *Struct) Install(ctx context.Context, appInstanceID string) error {
	return s.Internal.Install(ctx, appInstanceID)
}

func (s *Struct) InstallVirtual(ctx context.Context, appInstanceID string, intermediaries []string) error {
	return s.Internal.InstallVirtual(ctx, appInstanceID, intermediaries)
}

func (s *Struct) RejectInstall(ctx context.Context, appInstanceID string) error {
	return s.Internal.RejectInstall(ctx, appInstanceID)
}

func (s *Struct) Uninstall(ctx context.Context, appInstanceID string) error {
	return s.Internal.Uninstall(ctx, appInstanceID)
}

func (s *Struct) UninstallVirtual(ctx context.Context, appInstanceID string, intermediary string) error {
	return s.Internal.UninstallVirtual(ctx, appInstanceID, intermediary)
}

func (s *Struct) TakeAction(ctx context.Context, appInstanceID string, action json.RawMessage) (common.AppState, error) {
	return s.Internal.TakeAction(ctx, appInstanceID, action)
}

func (s *Struct) UpdateState(ctx context.Context, appInstanceID string, state common.AppState) (common.AppState, error) {
	return s.Internal.UpdateState(ctx, appInstanceID, state)
}

func (s *Struct) GetFreeBalanceState(ctx context.Context, multisigAddress string, assetID string) (common.FreeBalance, error) {
	return s.Internal.GetFreeBalanceState(ctx, multisigAddress, assetID)
}

func (s *Struct) GetAppInstances(ctx context.Context) ([]common.AppInstance, error) {
	return s.Internal.GetAppInstances(ctx)
}

func (s *Struct) GetProposedAppInstances(ctx context.Context) ([]common.AppProposal, error) {
	return s.Internal.GetProposedAppInstances(ctx)
}

func (s *Struct) GetState(ctx context.Context, appInstanceID string) (common.AppState, error) {
	return s.Internal.GetState(ctx, appInstanceID)
}

func (s *Struct) GetStateChannel(ctx context.Context, multisigAddress string) (StateChannel, error) {
	return s.Internal.GetStateChannel(ctx, multisigAddress)
}

func (s *Struct) RequestDepositRights(ctx context.Context, multisigAddress string, assetID string) error {
	return s.Internal.RequestDepositRights(ctx, multisigAddress, assetID)
}

func (s *Struct) RescindDepositRights(ctx context.Context, multisigAddress string, assetID string) error {
	return s.Internal.RescindDepositRights(ctx, multisigAddress, assetID)
}

func (s *Struct) Events(ctx context.Context) (<-chan Event, error) {
	return s.Internal.Events(ctx)
}

var _ API = (*Struct)(nil)
