package util

import (
	"context"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/rqzrqh/channel_hub/engine"
)

// NewEngineRPC builds a channel-engine client speaking the chan_* surface
// over a websocket jsonrpc connection.
func NewEngineRPC(ctx context.Context, addr string, requestHeader http.Header) (engine.API, jsonrpc.ClientCloser, error) {
	var res engine.Struct
	closer, err := jsonrpc.NewMergeClient(ctx, addr, "chan",
		[]interface{}{&res.Internal}, requestHeader)

	return &res, closer, err
}

func GetEngineAPIUsingCredentials(ctx context.Context, listenAddr, token string) (engine.API, jsonrpc.ClientCloser, error) {
	parsedAddr, err := ma.NewMultiaddr(listenAddr)
	if err != nil {
		return nil, nil, err
	}

	_, addr, err := manet.DialArgs(parsedAddr)
	if err != nil {
		return nil, nil, err
	}

	return NewEngineRPC(ctx, apiURI(addr), tokenHeaders(token))
}

func GetEngineAPIWithoutCredentials(ctx context.Context, listenAddr string) (engine.API, jsonrpc.ClientCloser, error) {
	parsedAddr, err := ma.NewMultiaddr(listenAddr)
	if err != nil {
		return nil, nil, err
	}

	_, addr, err := manet.DialArgs(parsedAddr)
	if err != nil {
		return nil, nil, err
	}

	return NewEngineRPC(ctx, apiURI(addr), emptyHeaders())
}

func apiURI(addr string) string {
	return "ws://" + addr + "/rpc/v1"
}

func tokenHeaders(token string) http.Header {
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)
	return headers
}

func emptyHeaders() http.Header {
	headers := http.Header{}
	return headers
}
