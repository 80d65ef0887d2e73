package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/engine"
)

func TestWaiterResolve(t *testing.T) {
	w := newWaiter()
	w.register("app-1")

	go w.resolve("app-1", &engine.Event{Name: engine.InstallEvent, AppInstanceID: "app-1"})

	ev, err := w.wait(context.Background(), "app-1", time.Second)
	require.NoError(t, err)
	require.Equal(t, "app-1", ev.AppInstanceID)

	// entry consumed
	_, err = w.wait(context.Background(), "app-1", time.Second)
	require.Error(t, err)
}

func TestWaiterReject(t *testing.T) {
	w := newWaiter()
	w.register("app-1")

	go w.reject("app-1", &engine.Event{Name: engine.RejectInstallEvent, AppInstanceID: "app-1"})

	ev, err := w.wait(context.Background(), "app-1", time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
	require.NotNil(t, ev)
}

func TestWaiterCorrelatesByID(t *testing.T) {
	w := newWaiter()
	w.register("app-1")
	w.register("app-2")

	// an event for one operation never resolves another
	w.resolve("app-2", &engine.Event{AppInstanceID: "app-2"})

	_, err := w.wait(context.Background(), "app-1", 20*time.Millisecond)
	require.True(t, xerrors.Is(err, ErrWaitTimeout))

	ev, err := w.wait(context.Background(), "app-2", time.Second)
	require.NoError(t, err)
	require.Equal(t, "app-2", ev.AppInstanceID)
}

func TestWaiterTimeoutRemovesEntry(t *testing.T) {
	w := newWaiter()
	w.register("app-1")

	_, err := w.wait(context.Background(), "app-1", 10*time.Millisecond)
	require.True(t, xerrors.Is(err, ErrWaitTimeout))

	// a late event cannot revive the abandoned wait
	w.resolve("app-1", &engine.Event{AppInstanceID: "app-1"})
	_, err = w.wait(context.Background(), "app-1", 10*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no pending operation")
}

func TestWaiterContextCancel(t *testing.T) {
	w := newWaiter()
	w.register("app-1")

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	_, err := w.wait(ctx, "app-1", time.Second)
	require.True(t, xerrors.Is(err, context.Canceled))
}

func TestWaiterRetainsEarlyOutcome(t *testing.T) {
	w := newWaiter()

	// the outcome lands before the operation registers its wait entry
	w.resolve("app-1", &engine.Event{Name: engine.InstallEvent, AppInstanceID: "app-1"})
	w.register("app-1")

	ev, err := w.wait(context.Background(), "app-1", time.Second)
	require.NoError(t, err)
	require.Equal(t, "app-1", ev.AppInstanceID)
}

func TestWaiterRetainsEarlyRejection(t *testing.T) {
	w := newWaiter()

	w.reject("app-1", &engine.Event{Name: engine.RejectInstallEvent, AppInstanceID: "app-1"})
	w.register("app-1")

	_, err := w.wait(context.Background(), "app-1", time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
}
