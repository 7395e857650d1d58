package common

import (
	"github.com/shopspring/decimal"
)

// --- Canonical Records ---

// TokenRecord is the canonical representation of a token, independent of
// which upstream produced it. ID is always the lowercase contract address;
// uniqueness of ID within a result set is enforced by Dedupe.
type TokenRecord struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	ImageURL                 string   `json:"imageUrl"`
	PriceUsd                 float64  `json:"priceUsd"`
	MarketCapUsd             float64  `json:"marketCapUsd"`
	FullyDilutedValuationUsd float64  `json:"fullyDilutedValuationUsd"`
	Volume24hUsd             float64  `json:"volume24hUsd"`
	PriceChangePct24h        float64  `json:"priceChangePct24h"`
	ContractAddress          string   `json:"contractAddress"`
	DexInfo                  *DexInfo `json:"dexInfo,omitempty"`
}

// DexInfo carries pair-level market data, present only when the record was
// sourced from the DEX data provider.
type DexInfo struct {
	DexID            string         `json:"dexId"`
	PairAddress      string         `json:"pairAddress"`
	LiquidityUsd     float64        `json:"liquidityUsd"`
	PriceNative      string         `json:"priceNative"`
	VolumeByWindow   WindowValues   `json:"volumeByWindow"`
	TxCountsByWindow TxWindowCounts `json:"txCountsByWindow"`
	PairURL          string         `json:"pairUrl"`
}

// WindowValues holds a metric bucketed by the provider's standard time windows.
type WindowValues struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// TxCount is a buy/sell transaction count pair.
type TxCount struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// TxWindowCounts holds transaction counts bucketed by time window.
type TxWindowCounts struct {
	M5  TxCount `json:"m5"`
	H1  TxCount `json:"h1"`
	H6  TxCount `json:"h6"`
	H24 TxCount `json:"h24"`
}

// TransactionRecord is a normalized chain transaction. ValueNative is the raw
// wei value divided by 10^18, kept exact via decimal.
type TransactionRecord struct {
	Hash         string          `json:"hash"`
	From         string          `json:"from"`
	To           string          `json:"to"`
	ValueNative  decimal.Decimal `json:"valueNative"`
	GasUsed      uint64          `json:"gasUsed"`
	GasPriceWei  string          `json:"gasPriceWei"`
	TimestampMs  int64           `json:"timestampMs"`
	BlockNumber  uint64          `json:"blockNumber"`
	MethodID     string          `json:"methodId"`
	FunctionName string          `json:"functionName,omitempty"`
	IsError      bool            `json:"isError"`
}

// TokenBalanceRecord is a wallet's holding of a single token.
// BalanceFormatted = RawBalance / 10^TokenDecimals.
type TokenBalanceRecord struct {
	ContractAddress  string          `json:"contractAddress"`
	TokenSymbol      string          `json:"tokenSymbol"`
	TokenName        string          `json:"tokenName"`
	TokenDecimals    int             `json:"tokenDecimals"`
	RawBalance       string          `json:"rawBalance"`
	BalanceFormatted decimal.Decimal `json:"balanceFormatted"`
}

// NativeBalance keeps the raw wei amount as a string at the edge and the
// decimal-adjusted native amount alongside it.
type NativeBalance struct {
	Wei       string          `json:"wei"`
	Formatted decimal.Decimal `json:"formatted"`
}

// WalletSummary is the headline state of a wallet.
type WalletSummary struct {
	Address          string        `json:"address"`
	NativeBalance    NativeBalance `json:"nativeBalance"`
	TransactionCount uint64        `json:"transactionCount"`
	GasPriceWei      string        `json:"gasPriceWei"`
	BlockNumber      uint64        `json:"blockNumber"`
}

// PlatformType identifies the social platform a profile belongs to.
type PlatformType string

const (
	PlatformENS       PlatformType = "ens"
	PlatformFarcaster PlatformType = "farcaster"
	PlatformLens      PlatformType = "lens"
	PlatformZora      PlatformType = "zora"
	PlatformBase      PlatformType = "base"
)

// KnownPlatform reports whether p is one of the supported platform types.
func KnownPlatform(p PlatformType) bool {
	switch p {
	case PlatformENS, PlatformFarcaster, PlatformLens, PlatformZora, PlatformBase:
		return true
	}
	return false
}

// SocialProfile is a normalized identity record from the profile resolver.
type SocialProfile struct {
	PlatformType PlatformType      `json:"platformType"`
	HandleOrName string            `json:"handleOrName"`
	Address      string            `json:"address"`
	AvatarURL    string            `json:"avatarUrl,omitempty"`
	Bio          string            `json:"bio,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

// WalletAggregate is the composite result of a wallet profile aggregation.
// Partial is set when at least one but not all sub-calls failed; absent
// sub-results are left empty, never nil slices.
type WalletAggregate struct {
	Wallet        *WalletSummary       `json:"wallet,omitempty"`
	Transactions  []TransactionRecord  `json:"transactions"`
	TokenBalances []TokenBalanceRecord `json:"tokenBalances"`
	Partial       bool                 `json:"partial"`
}
