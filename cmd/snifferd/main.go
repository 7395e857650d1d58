package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"snifferweb3/api"
	"snifferweb3/sniffer/aggregator"
	"snifferweb3/sniffer/cache"
	"snifferweb3/sniffer/config"
	"snifferweb3/sniffer/sources/dexscreener"
	"snifferweb3/sniffer/sources/explorer"
	"snifferweb3/sniffer/sources/social"
	"snifferweb3/sniffer/tokens"
	"snifferweb3/sniffer/upstream"
)

func main() {
	// Load .env file. Ignore error if file doesn't exist.
	if err := godotenv.Load(); err != nil {
		log.Println("Info: no .env file loaded, relying on system environment variables:", err)
	}

	configPath := os.Getenv("SNIFFER_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	policy := upstream.DefaultRetryPolicy()
	spacing := time.Duration(cfg.MinRequestInterval) * time.Millisecond

	explorerClient := explorer.New(
		cfg.ExplorerBaseURL,
		cfg.ExplorerAPIKey,
		cfg.ChainID,
		upstream.NewClient("explorer", spacing, upstream.DefaultTimeout, policy, logger),
		logger,
	)
	dexClient := dexscreener.New(
		cfg.DexBaseURL,
		cfg.ChainName,
		upstream.NewClient("dexscreener", spacing, upstream.DefaultTimeout, policy, logger),
		logger,
	)
	socialClient := social.New(
		cfg.SocialBaseURL,
		upstream.NewClient("social", spacing, upstream.DefaultTimeout, policy, logger),
		logger,
	)

	cacheLayer := cache.New(cfg.CachePath, logger)
	service := aggregator.New(
		explorerClient,
		dexClient,
		socialClient,
		cacheLayer,
		tokens.Curated(logger),
		tokens.TrendingKeywords,
		cfg.MaxSearchResults,
		logger,
	)

	server := api.NewServer(service, logger)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	logger.Info("API server starting", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, c.Handler(server)); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
