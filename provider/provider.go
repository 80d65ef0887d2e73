// Package provider adapts an Ethereum JSON-RPC endpoint to the minimal
// chain surface the controllers consume. Key management stays behind the
// Wallet interface; the provider itself never signs.
package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	logging "github.com/ipfs/go-log/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/channel_hub/hub"
)

var log = logging.Logger("provider")

// AddressZero denotes the native asset.
const AddressZero = "0x0000000000000000000000000000000000000000"

// balanceOfSelector is the 4-byte selector of erc20 balanceOf(address).
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// Wallet broadcasts signed transactions on behalf of the node.
type Wallet interface {
	SendTransaction(ctx context.Context, tx hub.MinimalTransaction) (string, error)
}

type EthProvider struct {
	client *ethclient.Client
	wallet Wallet
}

func NewEthProvider(rpcURL string, wallet Wallet) (*EthProvider, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, xerrors.Errorf("dial eth rpc %v: %w", rpcURL, err)
	}
	return &EthProvider{client: client, wallet: wallet}, nil
}

// BalanceOf reads the on-chain balance of address, native or erc20.
func (p *EthProvider) BalanceOf(ctx context.Context, address string, assetID string) (decimal.Decimal, error) {
	holder := ethcommon.HexToAddress(address)

	if assetID == AddressZero || assetID == "" {
		wei, err := p.client.BalanceAt(ctx, holder, nil)
		if err != nil {
			return decimal.Zero, xerrors.Errorf("balance of %v: %w", address, err)
		}
		return decimal.NewFromBigInt(wei, 0), nil
	}

	token := ethcommon.HexToAddress(assetID)
	data := append(append([]byte{}, balanceOfSelector...), ethcommon.LeftPadBytes(holder.Bytes(), 32)...)

	out, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return decimal.Zero, xerrors.Errorf("balanceOf %v on token %v: %w", address, assetID, err)
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(out), 0), nil
}

func (p *EthProvider) SendTransaction(ctx context.Context, tx hub.MinimalTransaction) (string, error) {
	if p.wallet == nil {
		return "", xerrors.New("node wallet not configured")
	}

	log.Infof("broadcasting transaction to %v value %v", tx.To, tx.Value)
	return p.wallet.SendTransaction(ctx, tx)
}

var _ hub.ChainProvider = (*EthProvider)(nil)
