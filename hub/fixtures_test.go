package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/dao"
	"github.com/rqzrqh/channel_hub/engine"
	"github.com/rqzrqh/channel_hub/lock"
	"github.com/rqzrqh/channel_hub/util"
)

var testDBSeq int64

func newTestStores(t *testing.T) (*gorm.DB, *redis.Client) {
	t.Helper()

	dsn := fmt.Sprintf("file:hub_test_%v?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, dao.CreateTables(db))

	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rds.Close() })

	return db, rds
}

func newTestDao(t *testing.T) *dao.Dao {
	t.Helper()
	db, rds := newTestStores(t)
	return dao.NewDao(context.Background(), db, rds)
}

func newTestLocks(t *testing.T) *lock.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rds.Close() })
	return lock.NewService(rds)
}

// fakeEngine is an in-memory stand-in for the external channel engine. It
// keeps free balances per (multisig, asset), answers proposals with an
// install or reject-install event through the waiter, and applies the
// proposed deposits to the balances on uninstall like a cooperative
// counterparty would.
type fakeEngine struct {
	mu sync.Mutex

	identifier string
	multisig   string
	balances   map[string]common.FreeBalance
	apps       map[string]common.AppInstance
	proposals  map[string]common.AppProposal
	installed  []string
	rejected   []string
	rights     int
	nextID     int

	waiter         *waiter
	eventChans     []chan engine.Event
	rejectInstalls bool
	depositShort   decimal.Decimal
	uninstallHook  func(f *fakeEngine, appID string)
}

func newFakeEngine(identifier string, multisig string) *fakeEngine {
	return &fakeEngine{
		identifier: identifier,
		multisig:   multisig,
		balances:   make(map[string]common.FreeBalance),
		apps:       make(map[string]common.AppInstance),
		proposals:  make(map[string]common.AppProposal),
	}
}

func balanceKey(multisigAddress, assetID string) string {
	return multisigAddress + "|" + assetID
}

func (f *fakeEngine) setBalance(multisigAddress, assetID, addr string, amount decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := balanceKey(multisigAddress, assetID)
	if f.balances[key] == nil {
		f.balances[key] = make(common.FreeBalance)
	}
	f.balances[key][addr] = amount
}

func (f *fakeEngine) balance(multisigAddress, assetID, addr string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[balanceKey(multisigAddress, assetID)][addr]
}

func (f *fakeEngine) adjust(multisigAddress, assetID, addr string, delta decimal.Decimal) {
	key := balanceKey(multisigAddress, assetID)
	if f.balances[key] == nil {
		f.balances[key] = make(common.FreeBalance)
	}
	f.balances[key][addr] = f.balances[key][addr].Add(delta)
}

func (f *fakeEngine) PublicIdentifier(ctx context.Context) (string, error) {
	return f.identifier, nil
}

func (f *fakeEngine) CreateChannel(ctx context.Context, counterpartyXpub string) (engine.CreateChannelResult, error) {
	return engine.CreateChannelResult{MultisigAddress: f.multisig}, nil
}

func (f *fakeEngine) Deposit(ctx context.Context, params engine.DepositParams) (engine.DepositResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	credited := params.Amount.Sub(f.depositShort)
	f.adjust(params.MultisigAddress, params.AssetID, util.FreeBalanceAddress(f.identifier), credited)
	return engine.DepositResult{MultisigBalance: credited}, nil
}

func (f *fakeEngine) Withdraw(ctx context.Context, params engine.WithdrawParams) (engine.WithdrawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return engine.WithdrawResult{TxHash: "0xenginetx"}, nil
}

func (f *fakeEngine) ProposeInstall(ctx context.Context, proposal common.AppProposal) (engine.ProposeInstallResult, error) {
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("app-%v", f.nextID)
	proposal.AppInstanceID = id
	f.proposals[id] = proposal
	f.apps[id] = common.AppInstance{IdentityHash: id, AppDefinition: proposal.AppDefinition}
	rejected := f.rejectInstalls
	f.mu.Unlock()

	f.settle(id, rejected)
	return engine.ProposeInstallResult{AppInstanceID: id}, nil
}

// settle answers the proposal through the waiter, once, before ProposeInstall
// even returns. The caller only registers its wait entry afterwards, so this
// exercises the waiter's retention of early outcomes.
func (f *fakeEngine) settle(id string, rejected bool) {
	f.mu.Lock()
	w := f.waiter
	f.mu.Unlock()
	if w == nil {
		return
	}
	if rejected {
		w.reject(id, &engine.Event{Name: engine.RejectInstallEvent, AppInstanceID: id})
	} else {
		w.resolve(id, &engine.Event{Name: engine.InstallEvent, AppInstanceID: id})
	}
}

func (f *fakeEngine) Install(ctx context.Context, appInstanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed = append(f.installed, appInstanceID)
	return nil
}

func (f *fakeEngine) InstallVirtual(ctx context.Context, appInstanceID string, intermediaries []string) error {
	return nil
}

func (f *fakeEngine) RejectInstall(ctx context.Context, appInstanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, appInstanceID)
	delete(f.apps, appInstanceID)
	delete(f.proposals, appInstanceID)
	return nil
}

func (f *fakeEngine) Uninstall(ctx context.Context, appInstanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uninstallHook != nil {
		f.uninstallHook(f, appInstanceID)
	} else if p, ok := f.proposals[appInstanceID]; ok {
		self := util.FreeBalanceAddress(f.identifier)
		f.adjust(f.multisig, p.InitiatorDepositTokenAddress, self, p.InitiatorDeposit.Neg())
		f.adjust(f.multisig, p.ResponderDepositTokenAddress, self, p.ResponderDeposit)
	}

	delete(f.apps, appInstanceID)
	return nil
}

func (f *fakeEngine) UninstallVirtual(ctx context.Context, appInstanceID string, intermediary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.apps, appInstanceID)
	return nil
}

func (f *fakeEngine) TakeAction(ctx context.Context, appInstanceID string, action json.RawMessage) (common.AppState, error) {
	return common.AppState{}, nil
}

func (f *fakeEngine) UpdateState(ctx context.Context, appInstanceID string, state common.AppState) (common.AppState, error) {
	return state, nil
}

func (f *fakeEngine) GetFreeBalanceState(ctx context.Context, multisigAddress string, assetID string) (common.FreeBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(common.FreeBalance)
	for addr, amount := range f.balances[balanceKey(multisigAddress, assetID)] {
		out[addr] = amount
	}
	return out, nil
}

func (f *fakeEngine) GetAppInstances(ctx context.Context) ([]common.AppInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]common.AppInstance, 0, len(f.apps))
	for _, app := range f.apps {
		out = append(out, app)
	}
	return out, nil
}

func (f *fakeEngine) GetProposedAppInstances(ctx context.Context) ([]common.AppProposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]common.AppProposal, 0, len(f.proposals))
	for _, p := range f.proposals {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeEngine) GetState(ctx context.Context, appInstanceID string) (common.AppState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[appInstanceID]
	if !ok {
		return common.AppState{}, xerrors.Errorf("no app %v", appInstanceID)
	}
	return app.State, nil
}

func (f *fakeEngine) GetStateChannel(ctx context.Context, multisigAddress string) (engine.StateChannel, error) {
	return engine.StateChannel{MultisigAddress: multisigAddress}, nil
}

func (f *fakeEngine) RequestDepositRights(ctx context.Context, multisigAddress string, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rights++
	return nil
}

func (f *fakeEngine) RescindDepositRights(ctx context.Context, multisigAddress string, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rights--
	return nil
}

func (f *fakeEngine) Events(ctx context.Context) (<-chan engine.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan engine.Event)
	f.eventChans = append(f.eventChans, ch)
	return ch, nil
}

func (f *fakeEngine) eventChan(i int) chan engine.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eventChans[i]
}

func (f *fakeEngine) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.eventChans)
}

var _ engine.API = (*fakeEngine)(nil)

type fakeProvider struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	txHash   string
	txs      []MinimalTransaction
	err      error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{balances: make(map[string]decimal.Decimal), txHash: "0xprovidertx"}
}

func (p *fakeProvider) setBalance(address, assetID string, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[address+"|"+assetID] = amount
}

func (p *fakeProvider) BalanceOf(ctx context.Context, address string, assetID string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[address+"|"+assetID], nil
}

func (p *fakeProvider) SendTransaction(ctx context.Context, tx MinimalTransaction) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.txs = append(p.txs, tx)
	return p.txHash, nil
}

var _ ChainProvider = (*fakeProvider)(nil)
