// go_subsearch: YouTube subtitle search and transcript MCP server.
//
// Exposes four MCP tools: caption_tracks, transcript_get, subtitle_search,
// transcript_copy. Optionally serves the message bridge over websocket so an
// external viewer can call the privileged context directly.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_subsearch/internal/bridge"
	"github.com/anatolykoptev/go_subsearch/internal/engine"
	"github.com/anatolykoptev/go_subsearch/internal/subserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version    = "dev"
	mcpPort    = env.Str("MCP_PORT", "8893")
	bridgeAddr = env.Str("BRIDGE_ADDR", "")
)

func main() {
	initEngine()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := subserver.NewRuntime(subserver.Options{})
	rt.Start(ctx)
	defer rt.Close()

	if bridgeAddr != "" {
		go serveBridge(rt)
	}

	slog.Info("starting go_subsearch",
		slog.String("port", mcpPort),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_subsearch",
		Version: version,
	}, nil)

	subserver.RegisterTools(server, rt)
	slog.Info("tools registered", slog.Int("count", 4))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_subsearch",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 120 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func serveBridge(rt *subserver.Runtime) {
	mux := http.NewServeMux()
	mux.Handle("/bridge", rt.BridgeHandler())
	srv := &http.Server{Addr: bridgeAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	slog.Info("bridge websocket listening", slog.String("addr", bridgeAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("bridge server failed", slog.Any("error", err))
	}
}

func initEngine() {
	policy, err := engine.LoadPolicy(env.Str("POLICY_FILE", ""))
	if err != nil {
		slog.Warn("policy file ignored", slog.Any("error", err))
	}
	policy = policy.WithStrategies(env.List("STRATEGY_ORDER", ""))
	if langs := env.List("PREFERRED_LANGS", ""); len(langs) > 0 {
		policy.PreferredLangs = langs
	}

	c := engine.Config{
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 10*time.Second),
		PageTimeout:          env.Duration("PAGE_TIMEOUT", 10*time.Second),
		CaptionsTimeout:      env.Duration("CAPTIONS_TIMEOUT", 10*time.Second),
		SubtitlesTimeout:     env.Duration("SUBTITLES_TIMEOUT", 15*time.Second),
		MaxBodyBytes:         int64(env.Int("MAX_BODY_BYTES", 6*1024*1024)),
		UpstreamRPS:          env.Float("UPSTREAM_RPS", 4),
		UpstreamBurst:        env.Int("UPSTREAM_BURST", 4),
		PreferredLangs:       policy.PreferredLangs,
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 500),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		ExtensionOrigin:      env.Str("EXTENSION_ORIGIN", subserver.DefaultExtensionOrigin),
		PageOriginPattern:    env.Str("PAGE_ORIGIN_PATTERN", bridge.PageOriginPattern),
		Policy:               policy,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	bc, err := engine.NewBrowserClient(15, env.Str("WEBSHARE_API_KEY", ""))
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	engine.Init(c)

	if dsn := env.Str("TRANSCRIPT_DB", ""); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := engine.OpenStore(ctx, dsn)
		cancel()
		if err != nil {
			slog.Warn("transcript store init failed", slog.Any("error", err))
		} else {
			engine.SetStore(store)
			slog.Info("transcript store initialized")
		}
	}

	cacheTTL := env.Duration("CACHE_TTL", 6*time.Hour)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}
