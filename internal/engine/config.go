package engine

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	FetchTimeout         time.Duration
	PageTimeout          time.Duration // nested privileged → page bridge hop
	CaptionsTimeout      time.Duration // viewer → privileged, track listing
	SubtitlesTimeout     time.Duration // viewer → privileged, full transcript
	MaxBodyBytes         int64
	UpstreamRPS          float64
	UpstreamBurst        int
	PreferredLangs       []string
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	ExtensionOrigin      string // origin stamped on viewer and privileged messages
	PageOriginPattern    string // regexp the page context's origin must match
	HTTPClient           *http.Client
	BrowserClient        *BrowserClient // nil = plain HTTPClient for upstream calls
	Policy               Policy
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (sources, subserver).
// Always points to the current cfg value.
var Cfg = &cfg

// upstream throttles every request leaving the process.
var upstream = rate.NewLimiter(rate.Inf, 1)

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 6 * 1024 * 1024
	}
	if len(c.Policy.Strategies) == 0 {
		c.Policy = DefaultPolicy()
	}
	cfg = c
	Cfg = &cfg

	limit := rate.Inf
	if c.UpstreamRPS > 0 {
		limit = rate.Limit(c.UpstreamRPS)
	}
	upstream = rate.NewLimiter(limit, max(c.UpstreamBurst, 1))
}
