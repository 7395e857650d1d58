// Package normalize converts upstream payload shapes into the canonical
// records the rest of the system works with, including wei and raw-amount
// unit conversion.
package normalize

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"snifferweb3/sniffer/common"
	"snifferweb3/sniffer/sources/dexscreener"
	"snifferweb3/sniffer/sources/explorer"
	"snifferweb3/sniffer/sources/social"
)

// NativeDecimals is assumed for the chain's native currency and for token
// transfers whose decimals field is missing or unparsable.
const NativeDecimals = 18

// WeiToNative converts a wei decimal string to native units exactly.
func WeiToNative(wei string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid wei amount %q: %w", wei, err)
	}
	return d.Shift(-NativeDecimals), nil
}

// FormatUnits divides a raw integer amount by 10^decimals.
func FormatUnits(raw string, decimals int) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid raw amount %q: %w", raw, err)
	}
	return d.Shift(int32(-decimals)), nil
}

// PlaceholderImageURL is the deterministic fallback used when a provider
// gives no usable token image, keyed by the token symbol so the same token
// always renders the same placeholder.
func PlaceholderImageURL(symbol string) string {
	return "https://api.dicebear.com/7.x/identicon/svg?seed=" + url.QueryEscape(strings.ToUpper(symbol))
}

// TokenFromPair maps a DEX pair onto a TokenRecord for the pair's base
// token. The contract address is the only required field.
func TokenFromPair(p dexscreener.Pair) (common.TokenRecord, error) {
	if p.BaseToken.Address == "" {
		return common.TokenRecord{}, &common.NormalizationError{
			Kind:   common.NormalizationUnexpectedShape,
			Source: "dexscreener",
			Field:  "baseToken.address",
		}
	}
	address := strings.ToLower(p.BaseToken.Address)

	imageURL := ""
	if p.Info != nil {
		imageURL = p.Info.ImageURL
	}
	if imageURL == "" {
		imageURL = PlaceholderImageURL(p.BaseToken.Symbol)
	}

	liquidity := 0.0
	if p.Liquidity != nil {
		liquidity = p.Liquidity.Usd
	}

	return common.TokenRecord{
		ID:                       address,
		Symbol:                   p.BaseToken.Symbol,
		Name:                     p.BaseToken.Name,
		ImageURL:                 imageURL,
		PriceUsd:                 parseFloat(p.PriceUsd),
		MarketCapUsd:             p.MarketCap,
		FullyDilutedValuationUsd: p.Fdv,
		Volume24hUsd:             p.Volume.H24,
		PriceChangePct24h:        p.PriceChange.H24,
		ContractAddress:          p.BaseToken.Address,
		DexInfo: &common.DexInfo{
			DexID:        p.DexID,
			PairAddress:  p.PairAddress,
			LiquidityUsd: liquidity,
			PriceNative:  p.PriceNative,
			VolumeByWindow: common.WindowValues{
				M5: p.Volume.M5, H1: p.Volume.H1, H6: p.Volume.H6, H24: p.Volume.H24,
			},
			TxCountsByWindow: common.TxWindowCounts{
				M5:  common.TxCount{Buys: p.Txns.M5.Buys, Sells: p.Txns.M5.Sells},
				H1:  common.TxCount{Buys: p.Txns.H1.Buys, Sells: p.Txns.H1.Sells},
				H6:  common.TxCount{Buys: p.Txns.H6.Buys, Sells: p.Txns.H6.Sells},
				H24: common.TxCount{Buys: p.Txns.H24.Buys, Sells: p.Txns.H24.Sells},
			},
			PairURL: p.URL,
		},
	}, nil
}

// TokensFromPairs maps every pair; a missing required field in any record
// propagates rather than being silently dropped.
func TokensFromPairs(pairs []dexscreener.Pair) ([]common.TokenRecord, error) {
	records := make([]common.TokenRecord, 0, len(pairs))
	for _, p := range pairs {
		record, err := TokenFromPair(p)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Transaction maps an explorer txlist entry onto a TransactionRecord.
func Transaction(raw explorer.RawTransaction) (common.TransactionRecord, error) {
	if raw.Hash == "" {
		return common.TransactionRecord{}, &common.NormalizationError{
			Kind:   common.NormalizationUnexpectedShape,
			Source: "explorer",
			Field:  "hash",
		}
	}
	valueNative, err := WeiToNative(raw.Value)
	if err != nil {
		return common.TransactionRecord{}, &common.NormalizationError{
			Kind:   common.NormalizationUnexpectedShape,
			Source: "explorer",
			Field:  "value",
		}
	}
	ts, _ := strconv.ParseInt(raw.TimeStamp, 10, 64)
	gasUsed, _ := strconv.ParseUint(raw.GasUsed, 10, 64)
	blockNumber, _ := strconv.ParseUint(raw.BlockNumber, 10, 64)

	return common.TransactionRecord{
		Hash:         raw.Hash,
		From:         strings.ToLower(raw.From),
		To:           strings.ToLower(raw.To),
		ValueNative:  valueNative,
		GasUsed:      gasUsed,
		GasPriceWei:  raw.GasPrice,
		TimestampMs:  ts * 1000,
		BlockNumber:  blockNumber,
		MethodID:     raw.MethodID,
		FunctionName: raw.FunctionName,
		IsError:      raw.IsError == "1",
	}, nil
}

// Transactions maps a txlist page, propagating the first shape error.
func Transactions(raw []explorer.RawTransaction) ([]common.TransactionRecord, error) {
	records := make([]common.TransactionRecord, 0, len(raw))
	for _, tx := range raw {
		record, err := Transaction(tx)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// TokenBalances reconstructs current token holdings from the wallet's
// transfer history: per contract, incoming amounts minus outgoing amounts.
// Tokens whose net balance is not positive are omitted. Missing decimals
// default to NativeDecimals rather than failing the record.
func TokenBalances(transfers []explorer.RawTokenTransfer, wallet string) ([]common.TokenBalanceRecord, error) {
	wallet = strings.ToLower(wallet)

	type holding struct {
		transfer explorer.RawTokenTransfer
		net      decimal.Decimal
	}
	order := make([]string, 0)
	holdings := make(map[string]*holding)
	poisoned := make(map[string]struct{})

	for _, t := range transfers {
		if t.ContractAddress == "" {
			return nil, &common.NormalizationError{
				Kind:   common.NormalizationUnexpectedShape,
				Source: "explorer",
				Field:  "contractAddress",
			}
		}
		key := strings.ToLower(t.ContractAddress)
		if _, bad := poisoned[key]; bad {
			continue
		}
		amount, err := decimal.NewFromString(t.Value)
		if err != nil {
			// A transfer amount we cannot parse would corrupt the running
			// balance, so drop the whole token and ignore its remaining
			// transfers rather than report a wrong number.
			poisoned[key] = struct{}{}
			delete(holdings, key)
			continue
		}
		h, ok := holdings[key]
		if !ok {
			h = &holding{transfer: t}
			holdings[key] = h
			order = append(order, key)
		}
		if strings.ToLower(t.To) == wallet {
			h.net = h.net.Add(amount)
		}
		if strings.ToLower(t.From) == wallet {
			h.net = h.net.Sub(amount)
		}
	}

	records := make([]common.TokenBalanceRecord, 0, len(holdings))
	for _, key := range order {
		h, ok := holdings[key]
		if !ok || !h.net.IsPositive() {
			continue
		}
		decimals := NativeDecimals
		if d, err := strconv.Atoi(h.transfer.TokenDecimal); err == nil && d >= 0 {
			decimals = d
		}
		records = append(records, common.TokenBalanceRecord{
			ContractAddress:  key,
			TokenSymbol:      h.transfer.TokenSymbol,
			TokenName:        h.transfer.TokenName,
			TokenDecimals:    decimals,
			RawBalance:       h.net.String(),
			BalanceFormatted: h.net.Shift(int32(-decimals)),
		})
	}
	return records, nil
}

// WalletSummary assembles the headline wallet record from the individual
// explorer lookups.
func WalletSummary(address, balanceWei string, txCount uint64, gasPriceWei string, blockNumber uint64) (common.WalletSummary, error) {
	formatted, err := WeiToNative(balanceWei)
	if err != nil {
		return common.WalletSummary{}, &common.NormalizationError{
			Kind:   common.NormalizationUnexpectedShape,
			Source: "explorer",
			Field:  "balance",
		}
	}
	return common.WalletSummary{
		Address:          strings.ToLower(address),
		NativeBalance:    common.NativeBalance{Wei: balanceWei, Formatted: formatted},
		TransactionCount: txCount,
		GasPriceWei:      gasPriceWei,
		BlockNumber:      blockNumber,
	}, nil
}

// Profile maps a resolver payload onto a SocialProfile. The second return
// is false for platforms outside the supported set or profiles without an
// identity; those are skipped, not errors.
func Profile(raw social.RawProfile) (common.SocialProfile, bool) {
	platform := common.PlatformType(strings.ToLower(raw.Platform))
	if !common.KnownPlatform(platform) {
		return common.SocialProfile{}, false
	}
	handle := raw.Identity
	if handle == "" {
		handle = raw.DisplayName
	}
	if handle == "" {
		return common.SocialProfile{}, false
	}
	metadata := make(map[string]string, len(raw.Links)+1)
	for k, v := range raw.Links {
		metadata[k] = v
	}
	if raw.DisplayName != "" {
		metadata["displayName"] = raw.DisplayName
	}
	return common.SocialProfile{
		PlatformType: platform,
		HandleOrName: handle,
		Address:      strings.ToLower(raw.Address),
		AvatarURL:    raw.Avatar,
		Bio:          raw.Description,
		Metadata:     metadata,
	}, true
}

// Profiles maps and filters a resolver response.
func Profiles(raw []social.RawProfile) []common.SocialProfile {
	profiles := make([]common.SocialProfile, 0, len(raw))
	for _, r := range raw {
		if p, ok := Profile(r); ok {
			profiles = append(profiles, p)
		}
	}
	return profiles
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
