// Package hub wires the channel services and controllers to the engine's
// event stream. One Hub runs per node process; cross-process races are
// serialized through the lock service.
package hub

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/atomic"
	"gorm.io/gorm"

	"github.com/rqzrqh/channel_hub/common"
	"github.com/rqzrqh/channel_hub/dao"
	"github.com/rqzrqh/channel_hub/engine"
	"github.com/rqzrqh/channel_hub/lock"
	"github.com/rqzrqh/channel_hub/registry"
	"github.com/rqzrqh/channel_hub/swaprate"
	"github.com/rqzrqh/channel_hub/util"
)

var log = logging.Logger("hub")

type Config struct {
	Network          string
	PublicIdentifier string
	AllowedSwaps     []common.AllowedSwap
}

type Hub struct {
	ctx    context.Context
	cancel context.CancelFunc

	api      engine.API
	dao      *dao.Dao
	locks    *lock.Service
	waiter   *waiter
	listener *listener

	Channels    *ChannelService
	Registry    *registry.Service
	Rates       *swaprate.Service
	Swaps       *SwapController
	Deposits    *DepositController
	Withdrawals *WithdrawalController
	Transfers   *TransferService

	started *atomic.Bool
	done    chan struct{}
}

func NewHub(ctx context.Context, db *gorm.DB, rds *redis.Client, api engine.API, provider ChainProvider, oracle swaprate.Oracle, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(ctx)

	d := dao.NewDao(ctx, db, rds)
	locks := lock.NewService(rds)
	w := newWaiter()
	l := newListener()

	channels := NewChannelService(d, api, locks, cfg.PublicIdentifier)
	rates := swaprate.NewService(d, oracle, cfg.AllowedSwaps)

	return &Hub{
		ctx:      ctx,
		cancel:   cancel,
		api:      api,
		dao:      d,
		locks:    locks,
		waiter:   w,
		listener: l,

		Channels:    channels,
		Registry:    registry.NewService(d, api, rates, channels, cfg.PublicIdentifier),
		Rates:       rates,
		Swaps:       NewSwapController(d, api, w, cfg.Network, cfg.PublicIdentifier),
		Deposits:    NewDepositController(api, provider, l, cfg.PublicIdentifier),
		Withdrawals: NewWithdrawalController(d, api, provider),
		Transfers:   NewTransferService(d),

		started: atomic.NewBool(false),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the engine's event stream and resumes any withdrawals
// interrupted by the previous run.
func (h *Hub) Start() error {
	if !h.started.CAS(false, true) {
		return nil
	}

	events, err := h.api.Events(h.ctx)
	if err != nil {
		return err
	}

	if err := h.Withdrawals.ResumePending(h.ctx); err != nil {
		log.Errorf("resuming pending withdrawals: %v", err)
	}

	go func() {
		defer close(h.done)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					log.Warn("engine event stream closed, resubscribing")
					if events = h.resubscribe(); events == nil {
						return
					}
					continue
				}
				h.handleEvent(&ev)
			case <-h.ctx.Done():
				return
			}
		}
	}()

	return nil
}

const resubscribeDelay = 5 * time.Second

// resubscribe re-establishes the engine event stream after a disconnect and
// resumes withdrawals that may have progressed unobserved in the gap. Returns
// nil only when the hub is shutting down.
func (h *Hub) resubscribe() <-chan engine.Event {
	for {
		events, err := h.api.Events(h.ctx)
		if err == nil {
			if rerr := h.Withdrawals.ResumePending(h.ctx); rerr != nil {
				log.Errorf("resuming pending withdrawals: %v", rerr)
			}
			return events
		}
		if h.ctx.Err() != nil {
			return nil
		}
		if util.IsWebsocketClosed(err) {
			log.Warnf("engine connection still down: %v", err)
		} else {
			log.Errorf("resubscribing to engine events: %v", err)
		}

		select {
		case <-time.After(resubscribeDelay):
		case <-h.ctx.Done():
			return nil
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
	if h.started.Load() {
		<-h.done
	}
}

func (h *Hub) handleEvent(ev *engine.Event) {
	log.Debugf("engine event %v app %v", ev.Name, ev.AppInstanceID)

	switch ev.Name {
	case engine.CreateChannelEvent:
		if err := h.Channels.MakeAvailable(ev); err != nil {
			log.Errorf("channel creation event for %v: %v", ev.MultisigAddress, err)
		}

	case engine.ProposeInstallEvent:
		if err := h.Registry.AllowOrReject(h.ctx, ev); err != nil {
			log.Errorf("propose install: %v", err)
		}

	case engine.ProposeInstallVirtualEvent:
		if err := h.Registry.AllowOrRejectVirtual(h.ctx, ev); err != nil {
			log.Errorf("propose install virtual: %v", err)
		}

	case engine.InstallEvent:
		h.waiter.resolve(ev.AppInstanceID, ev)

	case engine.RejectInstallEvent:
		id := ev.AppInstanceID
		if id == "" && ev.Proposal != nil {
			id = ev.Proposal.AppInstanceID
		}
		h.waiter.reject(id, ev)

	case engine.UninstallEvent:
		if err := h.Transfers.HandleUninstall(h.ctx, ev); err != nil {
			log.Errorf("uninstall of %v: %v", ev.AppInstanceID, err)
		}

	case engine.UpdateStateEvent:
		if err := h.Transfers.HandleUpdateState(h.ctx, ev); err != nil {
			log.Errorf("update state of %v: %v", ev.AppInstanceID, err)
		}

	case engine.DepositStartedEvent:
		h.setInflight(ev, true)

	case engine.DepositConfirmedEvent, engine.DepositFailedEvent:
		h.setInflight(ev, false)
		h.listener.emit(ev)

	case engine.WithdrawalConfirmedEvent, engine.WithdrawalFailedEvent:
		h.listener.emit(ev)

	default:
		log.Debugf("unhandled engine event %v", ev.Name)
	}
}

func (h *Hub) setInflight(ev *engine.Event, inflight bool) {
	if ev.CounterpartyXpub == "" {
		return
	}
	if err := h.Channels.SetInflightDeposit(ev.CounterpartyXpub, inflight); err != nil {
		log.Errorf("setting inflight flag for %v: %v", ev.CounterpartyXpub, err)
	}
}
