package util

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
)

// better way?
func IsWebsocketClosed(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "websocket") && strings.Contains(errStr, "closed")
}

// RandHexStr returns length hex characters from the system CSPRNG. The output
// backs lock tokens and payment ids, so it must never repeat across callers.
func RandHexStr(length int) string {
	b := make([]byte, (length+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)[:length]
}

// FreeBalanceAddress derives the 20-byte free-balance address the engine
// indexes balances by for a given extended public identifier.
func FreeBalanceAddress(publicIdentifier string) string {
	hash := crypto.Keccak256([]byte(publicIdentifier))
	return hexutil.Encode(hash[12:])
}

// ReqContext returns a context cancelled when the process receives an
// interrupt or termination signal.
func ReqContext(cctx *cli.Context) context.Context {
	ctx, done := context.WithCancel(cctx.Context)
	sigChan := make(chan os.Signal, 2)
	go func() {
		<-sigChan
		done()
	}()
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	return ctx
}
