// Package aggregator composes the upstream clients into the composite
// operations the dashboard consumes. Sub-calls run concurrently with
// settle-all semantics: every sub-call either succeeds or fails before the
// partial-success policy is applied.
package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"snifferweb3/sniffer/cache"
	"snifferweb3/sniffer/common"
	"snifferweb3/sniffer/normalize"
	"snifferweb3/sniffer/sources/dexscreener"
	"snifferweb3/sniffer/sources/explorer"
	"snifferweb3/sniffer/sources/social"
)

// TTL classes per cached aggregate. The TTL is a property of the call site,
// not of the cache.
const (
	WalletProfileTTL  = 30 * time.Minute
	TokenListTTL      = 3 * time.Minute
	SocialProfilesTTL = 30 * time.Minute
)

// Pagination of the explorer history endpoints.
const (
	txPageSize       = 25
	transferPageSize = 100
)

// Service is the aggregation orchestrator. The cache is injected so its
// lifecycle is owned by the process, not by this package.
type Service struct {
	explorer *explorer.Client
	dex      *dexscreener.Client
	social   *social.Client
	cache    *cache.Layer
	logger   *slog.Logger

	curated    []string
	keywords   []string
	maxResults int
}

func New(
	exp *explorer.Client,
	dex *dexscreener.Client,
	soc *social.Client,
	cacheLayer *cache.Layer,
	curated []string,
	keywords []string,
	maxResults int,
	logger *slog.Logger,
) *Service {
	return &Service{
		explorer:   exp,
		dex:        dex,
		social:     soc,
		cache:      cacheLayer,
		curated:    curated,
		keywords:   keywords,
		maxResults: maxResults,
		logger:     logger.With("component", "aggregator"),
	}
}

// WalletProfile aggregates the wallet summary, recent transactions and
// token balances. At least one successful sub-call yields a result, with
// Partial set when any failed; only a full wipeout is an error.
func (s *Service) WalletProfile(ctx context.Context, address string, forceRefresh bool) (*common.WalletAggregate, error) {
	key := "wallet:" + strings.ToLower(address)
	if !forceRefresh {
		var cached common.WalletAggregate
		if s.cache.Get(key, &cached) {
			return &cached, nil
		}
	}

	var (
		wg       sync.WaitGroup
		wallet   *common.WalletSummary
		txs      []common.TransactionRecord
		balances []common.TokenBalanceRecord
		errs     [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		summary, err := s.fetchWalletSummary(ctx, address)
		if err != nil {
			s.logger.Warn("wallet summary sub-call failed", "address", address, "error", err)
			errs[0] = err
			return
		}
		wallet = summary
	}()
	go func() {
		defer wg.Done()
		raw, err := s.explorer.Transactions(ctx, address, 1, txPageSize)
		if err == nil {
			txs, err = normalize.Transactions(raw)
		}
		if err != nil {
			s.logger.Warn("transaction list sub-call failed", "address", address, "error", err)
			errs[1] = err
		}
	}()
	go func() {
		defer wg.Done()
		raw, err := s.explorer.TokenTransfers(ctx, address, 1, transferPageSize)
		if err == nil {
			balances, err = normalize.TokenBalances(raw, address)
		}
		if err != nil {
			s.logger.Warn("token balance sub-call failed", "address", address, "error", err)
			errs[2] = err
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(errs) {
		return nil, &common.AggregateError{Kind: common.AggregateAllSourcesFailed, Errs: errs[:]}
	}

	if txs == nil {
		txs = []common.TransactionRecord{}
	}
	if balances == nil {
		balances = []common.TokenBalanceRecord{}
	}
	aggregate := &common.WalletAggregate{
		Wallet:        wallet,
		Transactions:  txs,
		TokenBalances: balances,
		Partial:       failed > 0,
	}

	if err := s.cache.Put(key, aggregate, WalletProfileTTL); err != nil {
		s.logger.Warn("failed to cache wallet aggregate", "key", key, "error", err)
	}
	return aggregate, nil
}

// fetchWalletSummary runs the four explorer lookups behind the wallet
// summary. The shared transport serializes them under the spacing rule.
func (s *Service) fetchWalletSummary(ctx context.Context, address string) (*common.WalletSummary, error) {
	balanceWei, err := s.explorer.Balance(ctx, address)
	if err != nil {
		return nil, err
	}
	txCount, err := s.explorer.TransactionCount(ctx, address)
	if err != nil {
		return nil, err
	}
	gasPriceWei, err := s.explorer.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	blockNumber, err := s.explorer.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := normalize.WalletSummary(address, balanceWei, txCount, gasPriceWei, blockNumber)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// TokenSearch returns the deduplicated token list for a search query, or
// the curated-plus-trending universe when the query is empty. Results are
// sorted by pair liquidity descending and capped at the configured maximum.
func (s *Service) TokenSearch(ctx context.Context, query string, forceRefresh bool) ([]common.TokenRecord, error) {
	key := "tokens:trending"
	if query != "" {
		key = "tokens:search:" + strings.ToLower(query)
	}
	if !forceRefresh {
		var cached []common.TokenRecord
		if s.cache.Get(key, &cached) {
			return cached, nil
		}
	}

	var (
		pairs []dexscreener.Pair
		err   error
	)
	if query != "" {
		pairs, err = s.dex.SearchPairs(ctx, query)
		if err != nil {
			return nil, &common.AggregateError{Kind: common.AggregateAllSourcesFailed, Errs: []error{err}}
		}
	} else {
		pairs, err = s.fetchTokenUniverse(ctx)
		if err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := normalize.TokensFromPairs(pairs)
	if err != nil {
		return nil, err
	}
	records = normalize.Dedupe(records, normalize.TieBreakLiquidityUsd)
	sort.SliceStable(records, func(i, j int) bool {
		return liquidity(records[i]) > liquidity(records[j])
	})
	if len(records) > s.maxResults {
		records = records[:s.maxResults]
	}

	if err := s.cache.Put(key, records, TokenListTTL); err != nil {
		s.logger.Warn("failed to cache token list", "key", key, "error", err)
	}
	return records, nil
}

// fetchTokenUniverse fans out over the curated address lookups and the
// broad keyword searches, merging whatever succeeds. Only a full wipeout
// is an error.
func (s *Service) fetchTokenUniverse(ctx context.Context) ([]dexscreener.Pair, error) {
	type result struct {
		pairs []dexscreener.Pair
		err   error
	}

	n := len(s.curated) + len(s.keywords)
	results := make(chan result, n)
	var wg sync.WaitGroup

	for _, addr := range s.curated {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			pairs, err := s.dex.PairsForToken(ctx, addr)
			results <- result{pairs: pairs, err: err}
		}(addr)
	}
	for _, keyword := range s.keywords {
		wg.Add(1)
		go func(keyword string) {
			defer wg.Done()
			pairs, err := s.dex.SearchPairs(ctx, keyword)
			results <- result{pairs: pairs, err: err}
		}(keyword)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	merged := make([]dexscreener.Pair, 0, n*4)
	var errs []error
	succeeded := 0
	for r := range results {
		if r.err != nil {
			s.logger.Warn("token universe sub-call failed", "error", r.err)
			errs = append(errs, r.err)
			continue
		}
		succeeded++
		merged = append(merged, r.pairs...)
	}
	if succeeded == 0 && n > 0 {
		return nil, &common.AggregateError{Kind: common.AggregateAllSourcesFailed, Errs: errs}
	}
	return merged, nil
}

// SocialProfiles resolves the identity records for an address. An address
// with no profiles is an empty list, not a failure.
func (s *Service) SocialProfiles(ctx context.Context, address string) ([]common.SocialProfile, error) {
	key := "profiles:" + strings.ToLower(address)
	var cached []common.SocialProfile
	if s.cache.Get(key, &cached) {
		return cached, nil
	}

	raw, err := s.social.ResolveAddress(ctx, address)
	if err != nil {
		return nil, &common.AggregateError{Kind: common.AggregateAllSourcesFailed, Errs: []error{err}}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profiles := normalize.Profiles(raw)

	if err := s.cache.Put(key, profiles, SocialProfilesTTL); err != nil {
		s.logger.Warn("failed to cache social profiles", "key", key, "error", err)
	}
	return profiles, nil
}

func liquidity(r common.TokenRecord) float64 {
	if r.DexInfo == nil {
		return 0
	}
	return r.DexInfo.LiquidityUsd
}
