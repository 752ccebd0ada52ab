// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package nyaa implements a client for the nyaa.si RSS search endpoint.
package nyaa

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://nyaa.si"

	// CategoryAnimeEnglish is nyaa's "Anime - English-translated" category.
	CategoryAnimeEnglish = "1_2"

	defaultTimeout       = 30 * time.Second
	defaultRetryAttempts = 3
	maxResponseBytes     = 8 << 20
)

// ErrRateLimited signals the indexer rejected the request with HTTP 429.
var ErrRateLimited = errors.New("nyaa: rate limited")

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts uint
	UserAgent     string
	// RequestsPerSecond throttles outbound calls; nyaa tolerates roughly one
	// request per second from unauthenticated clients.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client queries the nyaa RSS endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	attempts   uint
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewClient creates a nyaa client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		attempts:   opts.RetryAttempts,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		httpClient: httpClient,
	}
}

// SearchRequest carries nyaa search parameters.
type SearchRequest struct {
	Query    string
	Category string // e.g. "1_2", empty for all
	Filter   string // "0" no filter, "2" trusted only
	SortBy   string // "seeders", "id", "size", "downloads"
	Order    string // "asc" or "desc"
}

// Torrent is one raw indexer result.
type Torrent struct {
	ID          string
	Title       string
	Category    string
	MagnetLink  string
	TorrentLink string
	Size        string
	Seeders     int
	Leechers    int
	Downloads   int
	InfoHash    string
	Date        time.Time
	IsTrusted   bool
	IsRemake    bool
}

// SearchResponse wraps the decoded result list.
type SearchResponse struct {
	Torrents []Torrent
}

type rssDoc struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title      string `xml:"title"`
	Link       string `xml:"link"`
	GUID       string `xml:"guid"`
	PubDate    string `xml:"pubDate"`
	Seeders    string `xml:"seeders"`
	Leechers   string `xml:"leechers"`
	Downloads  string `xml:"downloads"`
	InfoHash   string `xml:"infoHash"`
	CategoryID string `xml:"categoryId"`
	Category   string `xml:"category"`
	Size       string `xml:"size"`
	Trusted    string `xml:"trusted"`
	Remake     string `xml:"remake"`
}

// Search queries the RSS endpoint. Queries are sanitized at this boundary;
// callers never need to pre-clean input.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	query := SanitizeQuery(req.Query)

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parse nyaa base url")
	}
	params := endpoint.Query()
	params.Set("page", "rss")
	params.Set("q", query)
	if req.Category != "" {
		params.Set("c", req.Category)
	}
	if req.Filter != "" {
		params.Set("f", req.Filter)
	}
	if req.SortBy != "" {
		params.Set("s", req.SortBy)
	}
	if req.Order != "" {
		params.Set("o", req.Order)
	}
	endpoint.RawQuery = params.Encode()

	var body []byte
	err = retry.Do(
		func() error {
			var fetchErr error
			body, fetchErr = c.fetch(ctx, endpoint.String())
			return fetchErr
		},
		retry.Attempts(c.attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, pkgerrors.Wrap(err, "decode nyaa rss")
	}

	torrents := make([]Torrent, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		torrents = append(torrents, convertItem(item))
	}

	return &SearchResponse{Torrents: torrents}, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "build nyaa request")
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "nyaa request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("nyaa returned status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

func convertItem(item rssItem) Torrent {
	t := Torrent{
		Title:       item.Title,
		TorrentLink: item.Link,
		Size:        item.Size,
		InfoHash:    strings.ToLower(strings.TrimSpace(item.InfoHash)),
		Category:    item.Category,
		IsTrusted:   strings.EqualFold(item.Trusted, "yes"),
		IsRemake:    strings.EqualFold(item.Remake, "yes"),
	}

	// GUID is the canonical view URL, e.g. https://nyaa.si/view/1234567
	if idx := strings.LastIndex(item.GUID, "/"); idx != -1 {
		t.ID = item.GUID[idx+1:]
	}
	if t.InfoHash != "" {
		t.MagnetLink = "magnet:?xt=urn:btih:" + t.InfoHash +
			"&dn=" + url.QueryEscape(item.Title)
	}

	if v, err := strconv.Atoi(item.Seeders); err == nil {
		t.Seeders = v
	}
	if v, err := strconv.Atoi(item.Leechers); err == nil {
		t.Leechers = v
	}
	if v, err := strconv.Atoi(item.Downloads); err == nil {
		t.Downloads = v
	}

	if item.PubDate != "" {
		for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
			if parsed, err := time.Parse(layout, item.PubDate); err == nil {
				t.Date = parsed
				break
			}
		}
	}

	return t
}
