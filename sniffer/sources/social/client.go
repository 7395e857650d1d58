// Package social implements the social-profile resolver client. The
// provider has shipped several response envelopes over time, so decoding
// goes through an ordered list of shape matchers instead of ad-hoc key
// probing.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"snifferweb3/sniffer/common"
	"snifferweb3/sniffer/upstream"
)

// RawProfile is the provider's per-platform identity payload.
type RawProfile struct {
	Platform    string            `json:"platform"`
	Identity    string            `json:"identity"`
	Address     string            `json:"address"`
	DisplayName string            `json:"displayName"`
	Avatar      string            `json:"avatar"`
	Description string            `json:"description"`
	Links       map[string]string `json:"links"`
}

// profileMatcher tries to extract the profile list from one known envelope
// variant. Pure function: returns false when the shape does not apply.
type profileMatcher func(body []byte) ([]RawProfile, bool)

// matchBareList handles the current API: a top-level JSON array.
func matchBareList(body []byte) ([]RawProfile, bool) {
	var profiles []RawProfile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, false
	}
	return profiles, true
}

// matchDataList handles the {"data":[...]} envelope.
func matchDataList(body []byte) ([]RawProfile, bool) {
	var envelope struct {
		Data []RawProfile `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Data == nil {
		return nil, false
	}
	return envelope.Data, true
}

// matchResultProfiles handles the legacy {"result":{"profiles":[...]}} envelope.
func matchResultProfiles(body []byte) ([]RawProfile, bool) {
	var envelope struct {
		Result struct {
			Profiles []RawProfile `json:"profiles"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Result.Profiles == nil {
		return nil, false
	}
	return envelope.Result.Profiles, true
}

// profileMatchers is tried in order; first match wins.
var profileMatchers = []profileMatcher{matchBareList, matchDataList, matchResultProfiles}

// Client resolves addresses and names against the profile API.
type Client struct {
	baseURL   string
	transport *upstream.Client
	logger    *slog.Logger
}

func New(baseURL string, transport *upstream.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		transport: transport,
		logger:    logger.With("source", "social"),
	}
}

// ResolveAddress returns every known profile for the address. An unknown
// address is a valid empty result, not an error.
func (c *Client) ResolveAddress(ctx context.Context, address string) ([]RawProfile, error) {
	u := fmt.Sprintf("%s/profile/%s", c.baseURL, url.PathEscape(address))
	var profiles []RawProfile
	err := c.transport.Get(ctx, u, nil, func(body []byte) error {
		for _, match := range profileMatchers {
			if found, ok := match(body); ok {
				profiles = found
				return nil
			}
		}
		return fmt.Errorf("no known profile envelope matched")
	})
	if err != nil {
		if isNotFound(err) {
			return []RawProfile{}, nil
		}
		return nil, err
	}
	return profiles, nil
}

// ResolveName resolves a handle (ENS name, farcaster handle) to an address.
// Returns "" without error when the name does not exist.
func (c *Client) ResolveName(ctx context.Context, name string) (string, error) {
	u := fmt.Sprintf("%s/ns/%s", c.baseURL, url.PathEscape(name))
	var envelope struct {
		Address string `json:"address"`
		Data    struct {
			Address string `json:"address"`
		} `json:"data"`
	}
	if err := c.transport.GetJSON(ctx, u, nil, &envelope); err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if envelope.Address != "" {
		return envelope.Address, nil
	}
	return envelope.Data.Address, nil
}

func isNotFound(err error) bool {
	var uerr *common.UpstreamError
	return errors.As(err, &uerr) && uerr.Kind == common.UpstreamHTTPError && uerr.Status == http.StatusNotFound
}
