package normalize

import (
	"strings"

	"snifferweb3/sniffer/common"
)

// TieBreak selects the field used to pick the best record among duplicates.
type TieBreak string

const (
	TieBreakVolume24h    TieBreak = "volume24h"
	TieBreakLiquidityUsd TieBreak = "liquidityUsd"
)

func tieValue(r common.TokenRecord, key TieBreak) float64 {
	switch key {
	case TieBreakLiquidityUsd:
		if r.DexInfo == nil {
			return 0
		}
		return r.DexInfo.LiquidityUsd
	default:
		return r.Volume24hUsd
	}
}

// Dedupe collapses records sharing a contract address (case-insensitive)
// into one, keeping the record with the maximum tie-break value. Ties keep
// the first-seen record, and surviving addresses retain first-seen order,
// so the function is stable and idempotent.
func Dedupe(records []common.TokenRecord, key TieBreak) []common.TokenRecord {
	out := make([]common.TokenRecord, 0, len(records))
	index := make(map[string]int, len(records))
	for _, r := range records {
		addr := strings.ToLower(r.ContractAddress)
		i, seen := index[addr]
		if !seen {
			index[addr] = len(out)
			out = append(out, r)
			continue
		}
		if tieValue(r, key) > tieValue(out[i], key) {
			out[i] = r
		}
	}
	return out
}
