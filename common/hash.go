package common

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// LinkedHash computes the redeem hash of a linked transfer, the tightly
// packed keccak256 of (uint256 amount, address assetId, bytes32 paymentId,
// bytes32 preImage). The sender commits to it in the app's initial state;
// the receiver reveals paymentId and preImage to redeem.
func LinkedHash(amount decimal.Decimal, assetID string, paymentID string, preImage string) string {
	packed := make([]byte, 0, 116)
	packed = append(packed, ethcommon.LeftPadBytes(amount.BigInt().Bytes(), 32)...)
	packed = append(packed, ethcommon.HexToAddress(assetID).Bytes()...)
	packed = append(packed, ethcommon.HexToHash(paymentID).Bytes()...)
	packed = append(packed, ethcommon.HexToHash(preImage).Bytes()...)

	return hexutil.Encode(crypto.Keccak256(packed))
}

// TransferAction is the action a receiver takes against a linked-transfer
// app to claim the payment.
type TransferAction struct {
	Amount    decimal.Decimal `json:"amount"`
	AssetID   string          `json:"assetId"`
	PaymentID string          `json:"paymentId"`
	PreImage  string          `json:"preImage"`
}
