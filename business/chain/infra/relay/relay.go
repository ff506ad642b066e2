// Package relay submits bundles to Flashbots-compatible builder relays.
package relay

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"

	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/httpclient"
)

const signatureHeader = "X-Flashbots-Signature"

// Config configures one relay endpoint.
type Config struct {
	Name    string
	URL     string
	Timeout time.Duration
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type bundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result *struct {
		BundleHash common.Hash `json:"bundleHash"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// Relay is a single eth_sendBundle endpoint.
type Relay struct {
	name   string
	url    string
	key    *ecdsa.PrivateKey
	client httpclient.Client
	nextID atomic.Uint64
}

// New creates a relay. key signs every request body.
func New(cfg Config, key *ecdsa.PrivateKey, opts ...httpclient.ClientOption) (*Relay, error) {
	if key == nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("relay signing key is required"))
	}

	name := cfg.Name
	if name == "" {
		name = cfg.URL
	}

	opts = append([]httpclient.ClientOption{
		httpclient.WithProviderName("relay:" + name),
		httpclient.WithRequestTimeout(cfg.Timeout),
	}, opts...)
	client, err := httpclient.NewInstrumentedClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("relay http client: %w", err)
	}

	return &Relay{name: name, url: cfg.URL, key: key, client: client}, nil
}

// ParseKey decodes a hex secp256k1 key, with or without 0x.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if len(hexKey) > 1 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("invalid relay signing key"))
	}
	return key, nil
}

// Name returns the relay name.
func (r *Relay) Name() string {
	return r.name
}

// SendBundle posts eth_sendBundle and returns the relay's bundle hash.
func (r *Relay) SendBundle(ctx context.Context, txs [][]byte, targetBlock uint64) (common.Hash, error) {
	params := bundleParams{BlockNumber: hexutil.EncodeUint64(targetBlock)}
	for _, tx := range txs {
		params.Txs = append(params.Txs, hexutil.Encode(tx))
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      r.nextID.Add(1),
		Method:  "eth_sendBundle",
		Params:  []any{params},
	})
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeBundleInvalid, apperror.WithCause(err))
	}

	sig, err := Sign(body, r.key)
	if err != nil {
		return common.Hash{}, err
	}

	var out rpcResponse
	resp, err := r.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("method", "eth_sendBundle")),
	).
		SetHeader("Content-Type", "application/json").
		SetHeader(signatureHeader, sig).
		SetBody(body).
		SetResult(&out).
		Post(ctx, r.url)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeRelayConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(r.name))
	}
	if resp.IsError() {
		return common.Hash{}, apperror.New(apperror.CodeRelayRejected,
			apperror.WithStatusCode(http.StatusBadGateway),
			apperror.WithContext(fmt.Sprintf("%s: status %d: %s", r.name, resp.StatusCode, resp.String())))
	}
	if out.Error != nil {
		return common.Hash{}, apperror.New(apperror.CodeRelayRejected,
			apperror.WithContext(fmt.Sprintf("%s: %d %s", r.name, out.Error.Code, out.Error.Message)))
	}
	if out.Result == nil {
		return common.Hash{}, apperror.New(apperror.CodeRelayRejected,
			apperror.WithContext(r.name+": empty result"))
	}
	return out.Result.BundleHash, nil
}

// Sign produces the X-Flashbots-Signature value for body.
func Sign(body []byte, key *ecdsa.PrivateKey) (string, error) {
	digest := accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(body))))
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err),
			apperror.WithContext("sign relay payload"))
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return addr.Hex() + ":" + hexutil.Encode(sig), nil
}
