// Package dexscreener implements the DEX data provider client.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"snifferweb3/sniffer/upstream"
)

// Pair is the provider's raw trading-pair payload. Numeric prices arrive as
// strings; liquidity can be null for brand-new pairs.
type Pair struct {
	ChainID       string          `json:"chainId"`
	DexID         string          `json:"dexId"`
	URL           string          `json:"url"`
	PairAddress   string          `json:"pairAddress"`
	BaseToken     Token           `json:"baseToken"`
	QuoteToken    Token           `json:"quoteToken"`
	PriceNative   string          `json:"priceNative"`
	PriceUsd      string          `json:"priceUsd"`
	Txns          PairTxns        `json:"txns"`
	Volume        PairVolume      `json:"volume"`
	PriceChange   PairPriceChange `json:"priceChange"`
	Liquidity     *Liquidity      `json:"liquidity"`
	Fdv           float64         `json:"fdv"`
	MarketCap     float64         `json:"marketCap"`
	PairCreatedAt int64           `json:"pairCreatedAt"`
	Info          *PairInfo       `json:"info"`
}

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Liquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

type TxnSummary struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

type PairTxns struct {
	M5  TxnSummary `json:"m5"`
	H1  TxnSummary `json:"h1"`
	H6  TxnSummary `json:"h6"`
	H24 TxnSummary `json:"h24"`
}

type PairVolume struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type PairPriceChange struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type PairInfo struct {
	ImageURL string `json:"imageUrl"`
}

// Client queries the DEX data provider. Every response is filtered to the
// configured target chain before it leaves this package.
type Client struct {
	baseURL   string
	chainID   string
	transport *upstream.Client
	logger    *slog.Logger
}

func New(baseURL, chainID string, transport *upstream.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		chainID:   chainID,
		transport: transport,
		logger:    logger.With("source", "dexscreener"),
	}
}

type pairsResponse struct {
	Pairs []Pair `json:"pairs"`
}

// SearchPairs runs a free-text pair search. No matches is a valid empty
// result, not an error.
func (c *Client) SearchPairs(ctx context.Context, query string) ([]Pair, error) {
	u := fmt.Sprintf("%s/latest/dex/search?q=%s", c.baseURL, url.QueryEscape(query))
	return c.fetchPairs(ctx, u)
}

// PairsForToken returns all pairs trading the given token contract.
func (c *Client) PairsForToken(ctx context.Context, contractAddress string) ([]Pair, error) {
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, url.PathEscape(contractAddress))
	return c.fetchPairs(ctx, u)
}

func (c *Client) fetchPairs(ctx context.Context, u string) ([]Pair, error) {
	var resp pairsResponse
	if err := c.transport.Get(ctx, u, nil, func(body []byte) error {
		return json.Unmarshal(body, &resp)
	}); err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, len(resp.Pairs))
	for _, p := range resp.Pairs {
		if p.ChainID != c.chainID {
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}
