package hub

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rqzrqh/channel_hub/dao"
	"github.com/rqzrqh/channel_hub/engine"
	"github.com/rqzrqh/channel_hub/model"
	"github.com/rqzrqh/channel_hub/util"
)

func newChannelFixture(t *testing.T) (*ChannelService, *fakeEngine, *dao.Dao) {
	t.Helper()

	d := newTestDao(t)
	fake := newFakeEngine(testNodeID, testMultisig)
	cs := NewChannelService(d, fake, newTestLocks(t), testNodeID)
	return cs, fake, d
}

func saveTestChannel(t *testing.T, d *dao.Dao) {
	t.Helper()
	require.NoError(t, d.SaveChannel(&model.Channel{
		UserPublicIdentifier: testUserID,
		NodePublicIdentifier: testNodeID,
		MultisigAddress:      testMultisig,
		Available:            true,
	}))
}

func TestCreateChannel(t *testing.T) {
	cs, _, _ := newChannelFixture(t)

	res, err := cs.Create(context.Background(), testUserID)
	require.NoError(t, err)
	require.Equal(t, testMultisig, res.MultisigAddress)
}

func TestCreateChannelAlreadyExists(t *testing.T) {
	cs, _, d := newChannelFixture(t)
	saveTestChannel(t, d)

	_, err := cs.Create(context.Background(), testUserID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "channel already exists")
}

func TestDepositUnknownMultisig(t *testing.T) {
	cs, _, _ := newChannelFixture(t)

	_, err := cs.Deposit(context.Background(), testMultisig, decimal.NewFromInt(100), assetFrom)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no channel exists")
}

func TestDepositHoldsRights(t *testing.T) {
	cs, fake, d := newChannelFixture(t)
	saveTestChannel(t, d)

	_, err := cs.Deposit(context.Background(), testMultisig, decimal.NewFromInt(100), assetFrom)
	require.NoError(t, err)

	self := util.FreeBalanceAddress(testNodeID)
	require.Equal(t, "100", fake.balance(testMultisig, assetFrom, self).String())

	// rights requested and rescinded in pairs
	require.Equal(t, 0, fake.rights)
}

func TestRequestCollateral(t *testing.T) {
	self := util.FreeBalanceAddress(testNodeID)

	cases := map[string]struct {
		nodeBalance int64
		override    int64
		want        string
	}{
		// below the minimum, refill to the profile target
		"refill to target": {50, 0, "200"},
		// override raises the floor above the target
		"override beyond target": {50, 500, "500"},
		// already collateralized, nothing to do
		"sufficient": {150, 0, "150"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cs, fake, d := newChannelFixture(t)
			saveTestChannel(t, d)

			_, err := cs.AddPaymentProfile(testUserID, assetFrom,
				decimal.NewFromInt(100), decimal.NewFromInt(200))
			require.NoError(t, err)

			fake.setBalance(testMultisig, assetFrom, self, decimal.NewFromInt(tc.nodeBalance))

			err = cs.RequestCollateral(context.Background(), testUserID, assetFrom, decimal.NewFromInt(tc.override))
			require.NoError(t, err)
			require.Equal(t, tc.want, fake.balance(testMultisig, assetFrom, self).String())

			// inflight flag cleared once the deposit settles
			channel, err := d.FindChannelByUser(testUserID)
			require.NoError(t, err)
			require.False(t, channel.DepositInFlight)
		})
	}
}

func TestRequestCollateralSkipsInflight(t *testing.T) {
	cs, fake, d := newChannelFixture(t)
	saveTestChannel(t, d)
	require.NoError(t, d.SetInflightDeposit(testUserID, true))

	err := cs.RequestCollateral(context.Background(), testUserID, assetFrom, decimal.Zero)
	require.NoError(t, err)

	self := util.FreeBalanceAddress(testNodeID)
	require.Equal(t, "0", fake.balance(testMultisig, assetFrom, self).String())
}

func TestRequestCollateralNoProfile(t *testing.T) {
	cs, _, d := newChannelFixture(t)
	saveTestChannel(t, d)

	err := cs.RequestCollateral(context.Background(), testUserID, assetFrom, decimal.Zero)
	require.Error(t, err)
	require.Contains(t, err.Error(), "profile does not exist")
}

func TestAddPaymentProfileRejectsNegative(t *testing.T) {
	cs, _, d := newChannelFixture(t)
	saveTestChannel(t, d)

	_, err := cs.AddPaymentProfile(testUserID, assetFrom, decimal.NewFromInt(-1), decimal.NewFromInt(10))
	require.Error(t, err)
}

func TestMakeAvailable(t *testing.T) {
	cs, _, d := newChannelFixture(t)

	ev := &engine.Event{
		Name:             engine.CreateChannelEvent,
		MultisigAddress:  testMultisig,
		Owners:           []string{testNodeID, testUserID},
		CounterpartyXpub: testUserID,
	}
	require.NoError(t, cs.MakeAvailable(ev))

	channel, err := d.FindChannelByUser(testUserID)
	require.NoError(t, err)
	require.True(t, channel.Available)
	require.Equal(t, testMultisig, channel.MultisigAddress)

	// replaying the event for the same owners is fine
	require.NoError(t, cs.MakeAvailable(ev))
}

func TestMakeAvailableOwnerMismatch(t *testing.T) {
	cs, _, d := newChannelFixture(t)
	saveTestChannel(t, d)

	err := cs.MakeAvailable(&engine.Event{
		Name:             engine.CreateChannelEvent,
		MultisigAddress:  testMultisig,
		Owners:           []string{testNodeID, "xpub-somebody-else"},
		CounterpartyXpub: "xpub-somebody-else",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "different owners")
}
