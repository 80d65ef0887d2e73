package hub

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rqzrqh/channel_hub/engine"
)

func TestListenerOnOffEmit(t *testing.T) {
	l := newListener()

	var got []string
	id1 := l.on(engine.DepositConfirmedEvent, func(ev *engine.Event) {
		got = append(got, "first:"+ev.MultisigAddress)
	})
	id2 := l.on(engine.DepositConfirmedEvent, func(ev *engine.Event) {
		got = append(got, "second:"+ev.MultisigAddress)
	})
	l.on(engine.DepositFailedEvent, func(ev *engine.Event) {
		got = append(got, "failed")
	})

	l.emit(&engine.Event{Name: engine.DepositConfirmedEvent, MultisigAddress: "0xms"})
	require.Len(t, got, 2)
	require.Contains(t, got, "first:0xms")
	require.Contains(t, got, "second:0xms")

	l.off(engine.DepositConfirmedEvent, id1)
	got = nil
	l.emit(&engine.Event{Name: engine.DepositConfirmedEvent, MultisigAddress: "0xms"})
	require.Equal(t, []string{"second:0xms"}, got)

	l.off(engine.DepositConfirmedEvent, id2)
	got = nil
	l.emit(&engine.Event{Name: engine.DepositConfirmedEvent})
	require.Empty(t, got)
}
