// Package explorer implements the etherscan-alike chain explorer client.
// All calls go through a single rate-limited endpoint that takes a chain
// identifier and an API key.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"snifferweb3/sniffer/common"
	"snifferweb3/sniffer/upstream"
)

// RawTransaction mirrors the explorer txlist payload: every numeric field is
// a decimal string, IsError is a "0"/"1" flag.
type RawTransaction struct {
	Hash         string `json:"hash"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	GasUsed      string `json:"gasUsed"`
	GasPrice     string `json:"gasPrice"`
	TimeStamp    string `json:"timeStamp"`
	BlockNumber  string `json:"blockNumber"`
	MethodID     string `json:"methodId"`
	FunctionName string `json:"functionName"`
	IsError      string `json:"isError"`
}

// RawTokenTransfer mirrors the explorer tokentx payload.
type RawTokenTransfer struct {
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	TimeStamp       string `json:"timeStamp"`
}

// Client talks to a single explorer deployment for a single chain.
type Client struct {
	domain    string
	apiKey    string
	chainID   uint64
	transport *upstream.Client
	logger    *slog.Logger
}

func New(domain, apiKey string, chainID uint64, transport *upstream.Client, logger *slog.Logger) *Client {
	return &Client{
		domain:    domain,
		apiKey:    apiKey,
		chainID:   chainID,
		transport: transport,
		logger:    logger.With("source", "explorer"),
	}
}

func (c *Client) apiURL(params url.Values) string {
	params.Set("chainid", fmt.Sprintf("%d", c.chainID))
	params.Set("apikey", c.apiKey)
	return fmt.Sprintf("%s/api?%s", c.domain, params.Encode())
}

// apiResponse is the explorer's module/action envelope. Status "0" covers
// both real errors and the semantically-empty "No transactions found".
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// emptyResult reports whether an error envelope actually means "no data",
// which is a valid outcome for a brand-new or inactive wallet.
func emptyResult(message string, result json.RawMessage) bool {
	msg := strings.ToLower(message)
	if strings.Contains(msg, "no transactions found") || strings.Contains(msg, "not found") {
		return true
	}
	var s string
	if json.Unmarshal(result, &s) == nil {
		return strings.Contains(strings.ToLower(s), "not found")
	}
	return false
}

// decodeEnvelope parses a module/action response. The explorer reports rate
// limiting inside a 200 envelope; that is surfaced as a transient upstream
// error so the transport retries it, regardless of which endpoint hit it.
func (c *Client) decodeEnvelope(body []byte, envelope *apiResponse) error {
	if err := json.Unmarshal(body, envelope); err != nil {
		return err
	}
	if envelope.Status == "1" {
		return nil
	}
	var detail string
	_ = json.Unmarshal(envelope.Result, &detail)
	if strings.Contains(strings.ToLower(detail), "rate limit") {
		return &common.UpstreamError{
			Kind:     common.UpstreamRateLimited,
			Upstream: c.transport.Name(),
			Err:      fmt.Errorf("%s: %s", envelope.Message, detail),
		}
	}
	return nil
}

// fetchList runs a module/action call whose result is a JSON array. The
// returned boolean is false when the upstream reported an empty result set.
func (c *Client) fetchList(ctx context.Context, u string, out any) (bool, error) {
	var envelope apiResponse
	err := c.transport.Get(ctx, u, nil, func(body []byte) error {
		if err := c.decodeEnvelope(body, &envelope); err != nil {
			return err
		}
		if envelope.Status == "1" || emptyResult(envelope.Message, envelope.Result) {
			return nil
		}
		var detail string
		_ = json.Unmarshal(envelope.Result, &detail)
		return &common.UpstreamError{
			Kind:     common.UpstreamHTTPError,
			Upstream: c.transport.Name(),
			Err:      fmt.Errorf("%s: %s", envelope.Message, detail),
		}
	})
	if err != nil {
		return false, err
	}
	if envelope.Status != "1" {
		return false, nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return false, &common.UpstreamError{Kind: common.UpstreamInvalidShape, Upstream: c.transport.Name(), Err: err}
	}
	return true, nil
}

// Balance returns the wallet's native balance as a wei decimal string.
func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	u := c.apiURL(url.Values{
		"module":  {"account"},
		"action":  {"balance"},
		"address": {address},
		"tag":     {"latest"},
	})
	var envelope apiResponse
	err := c.transport.Get(ctx, u, nil, func(body []byte) error {
		return c.decodeEnvelope(body, &envelope)
	})
	if err != nil {
		return "", err
	}
	var wei string
	if err := json.Unmarshal(envelope.Result, &wei); err != nil || envelope.Status != "1" {
		if emptyResult(envelope.Message, envelope.Result) {
			return "0", nil
		}
		return "", &common.UpstreamError{
			Kind:     common.UpstreamInvalidShape,
			Upstream: c.transport.Name(),
			Err:      fmt.Errorf("balance lookup: %s", envelope.Message),
		}
	}
	return wei, nil
}

// Transactions lists normal transactions for address, newest first.
func (c *Client) Transactions(ctx context.Context, address string, page, offset int) ([]RawTransaction, error) {
	u := c.apiURL(url.Values{
		"module":  {"account"},
		"action":  {"txlist"},
		"address": {address},
		"page":    {fmt.Sprintf("%d", page)},
		"offset":  {fmt.Sprintf("%d", offset)},
		"sort":    {"desc"},
	})
	var txs []RawTransaction
	ok, err := c.fetchList(ctx, u, &txs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RawTransaction{}, nil
	}
	return txs, nil
}

// TokenTransfers lists ERC-20 transfer events involving address.
func (c *Client) TokenTransfers(ctx context.Context, address string, page, offset int) ([]RawTokenTransfer, error) {
	u := c.apiURL(url.Values{
		"module":  {"account"},
		"action":  {"tokentx"},
		"address": {address},
		"page":    {fmt.Sprintf("%d", page)},
		"offset":  {fmt.Sprintf("%d", offset)},
		"sort":    {"asc"},
	})
	var transfers []RawTokenTransfer
	ok, err := c.fetchList(ctx, u, &transfers)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RawTokenTransfer{}, nil
	}
	return transfers, nil
}

// proxyResult runs an eth_* proxy action and returns its hex-quantity
// result. Proxy responses carry no status field; a rate-limit envelope does,
// and decodeEnvelope picks it up.
func (c *Client) proxyResult(ctx context.Context, u string) (string, error) {
	var envelope apiResponse
	err := c.transport.Get(ctx, u, nil, func(body []byte) error {
		return c.decodeEnvelope(body, &envelope)
	})
	if err != nil {
		return "", err
	}
	var hex string
	if err := json.Unmarshal(envelope.Result, &hex); err != nil {
		return "", &common.UpstreamError{Kind: common.UpstreamInvalidShape, Upstream: c.transport.Name(), Err: err}
	}
	return hex, nil
}

// GasPrice returns the current gas price as a wei decimal string.
func (c *Client) GasPrice(ctx context.Context) (string, error) {
	u := c.apiURL(url.Values{
		"module": {"proxy"},
		"action": {"eth_gasPrice"},
	})
	result, err := c.proxyResult(ctx, u)
	if err != nil {
		return "", err
	}
	wei, err := hexutil.DecodeBig(result)
	if err != nil {
		return "", &common.UpstreamError{Kind: common.UpstreamInvalidShape, Upstream: c.transport.Name(), Err: err}
	}
	return wei.String(), nil
}

// BlockNumber returns the current head block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	u := c.apiURL(url.Values{
		"module": {"proxy"},
		"action": {"eth_blockNumber"},
	})
	result, err := c.proxyResult(ctx, u)
	if err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(result)
	if err != nil {
		return 0, &common.UpstreamError{Kind: common.UpstreamInvalidShape, Upstream: c.transport.Name(), Err: err}
	}
	return n, nil
}

// TransactionCount returns the wallet's outgoing transaction count.
func (c *Client) TransactionCount(ctx context.Context, address string) (uint64, error) {
	u := c.apiURL(url.Values{
		"module":  {"proxy"},
		"action":  {"eth_getTransactionCount"},
		"address": {address},
		"tag":     {"latest"},
	})
	result, err := c.proxyResult(ctx, u)
	if err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(result)
	if err != nil {
		return 0, &common.UpstreamError{Kind: common.UpstreamInvalidShape, Upstream: c.transport.Name(), Err: err}
	}
	return n, nil
}
