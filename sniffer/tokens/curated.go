// Package tokens holds the curated token universe used when the dashboard
// asks for a token list without a search query.
package tokens

import (
	"log/slog"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// rawCurated is the hand-maintained list of well-known Base tokens. It is
// validated at load time rather than trusted verbatim: entries may be
// duplicated or mistyped after manual edits.
var rawCurated = []string{
	"0x4200000000000000000000000000000000000006", // WETH
	"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", // USDC
	"0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed", // DEGEN
	"0x940181a94A35A4569E4529A3CDfB74e38FD98631", // AERO
	"0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf", // cbBTC
	"0x0b3e328455c4059EEb9e3f84b5543F74E24e7E1b", // VIRTUAL
	"0x532f27101965dd16442E59d40670FaF5eBB142E4", // BRETT
	"0xAC1Bd2486aAf3B5C0fc3Fd868558b082a531B2B4", // TOSHI
}

// TrendingKeywords are the broad searches merged with the curated lookups
// for the no-query token list.
var TrendingKeywords = []string{"clanker", "degen", "aerodrome", "virtual", "base"}

// Curated returns the validated, deduplicated curated list in lowercase.
// Malformed entries are dropped with a warning; the intended address cannot
// be inferred, so no repair is attempted.
func Curated(logger *slog.Logger) []string {
	out := make([]string, 0, len(rawCurated))
	seen := make(map[string]struct{}, len(rawCurated))
	for _, addr := range rawCurated {
		if !ethcommon.IsHexAddress(addr) {
			logger.Warn("dropping malformed curated token address", "address", addr)
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			logger.Warn("dropping duplicate curated token address", "address", addr)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
