package common

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLinkedHashDeterministic(t *testing.T) {
	amount := decimal.NewFromInt(1000)
	assetID := "0x1111111111111111111111111111111111111111"
	paymentID := "0x" + strings.Repeat("ab", 32)
	preImage := "0x" + strings.Repeat("cd", 32)

	h1 := LinkedHash(amount, assetID, paymentID, preImage)
	h2 := LinkedHash(amount, assetID, paymentID, preImage)
	require.Equal(t, h1, h2)

	require.True(t, strings.HasPrefix(h1, "0x"))
	require.Len(t, h1, 66)
}

func TestLinkedHashSensitivity(t *testing.T) {
	amount := decimal.NewFromInt(1000)
	assetID := "0x1111111111111111111111111111111111111111"
	paymentID := "0x" + strings.Repeat("ab", 32)
	preImage := "0x" + strings.Repeat("cd", 32)

	base := LinkedHash(amount, assetID, paymentID, preImage)

	require.NotEqual(t, base, LinkedHash(decimal.NewFromInt(1001), assetID, paymentID, preImage))
	require.NotEqual(t, base, LinkedHash(amount, "0x2222222222222222222222222222222222222222", paymentID, preImage))
	require.NotEqual(t, base, LinkedHash(amount, assetID, "0x"+strings.Repeat("ba", 32), preImage))
	require.NotEqual(t, base, LinkedHash(amount, assetID, paymentID, "0x"+strings.Repeat("dc", 32)))
}

func TestAppKindFromName(t *testing.T) {
	cases := map[string]AppKind{
		SimpleTwoPartySwapAppName:           AppSimpleTwoPartySwap,
		UnidirectionalTransferAppName:       AppUnidirectionalTransfer,
		UnidirectionalLinkedTransferAppName: AppUnidirectionalLinkedTransfer,
		"SomethingElse":                     AppUnknown,
	}
	for name, want := range cases {
		require.Equal(t, want, AppKindFromName(name))
	}

	require.Equal(t, SimpleTwoPartySwapAppName, AppSimpleTwoPartySwap.String())
	require.Equal(t, "UnknownApp", AppUnknown.String())
}

func TestAppProposalVirtual(t *testing.T) {
	p := AppProposal{}
	require.False(t, p.Virtual())

	p.Intermediaries = []string{"xpub-node"}
	require.True(t, p.Virtual())
}
