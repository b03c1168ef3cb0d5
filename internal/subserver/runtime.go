// Package subserver assembles the three execution contexts and exposes them
// as MCP tools. The viewer talks to the privileged host over one pipe; the
// privileged context reaches the page host over a second pipe for calls that
// need the page's network identity.
package subserver

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sync/atomic"

	"github.com/anatolykoptev/go_subsearch/internal/bridge"
	"github.com/anatolykoptev/go_subsearch/internal/engine"
	"github.com/anatolykoptev/go_subsearch/internal/engine/sources"
	"github.com/anatolykoptev/go_subsearch/internal/viewer"
)

// DefaultExtensionOrigin is stamped on viewer messages when none is configured.
const DefaultExtensionOrigin = "chrome-extension://subsearch"

// pageOrigin is the origin of everything the privileged and page contexts post.
const pageOrigin = "https://www.youtube.com"

// Runtime owns the bridge topology and the transcript session.
type Runtime struct {
	Viewer  *viewer.Viewer
	Session *sources.Session

	privileged *bridge.Host
	page       *bridge.Host
	pageClient *bridge.Client

	viewerEnd, privilegedEnd bridge.Transport
	pageClientEnd, pageEnd   bridge.Transport

	position atomic.Uint64 // float64 bits of the last seek target
}

// Options replaces the upstreams used by each context. Zero values use the
// engine HTTP stack.
type Options struct {
	Direct  sources.Upstream // privileged context's own fetches
	PageNet sources.Upstream // network identity of the page context
	Panels  sources.PanelOpener
}

// NewRuntime wires the contexts from the engine configuration.
func NewRuntime(opts Options) *Runtime {
	c := engine.Cfg
	if opts.Direct == nil {
		opts.Direct = sources.Direct{}
	}
	if opts.PageNet == nil {
		opts.PageNet = sources.Direct{}
	}
	if opts.Panels == nil {
		opts.Panels = sources.SnapshotPanels
	}
	extOrigin := c.ExtensionOrigin
	if extOrigin == "" {
		extOrigin = DefaultExtensionOrigin
	}
	pagePattern := c.PageOriginPattern
	if pagePattern == "" {
		pagePattern = bridge.PageOriginPattern
	}
	pagePolicy, err := bridge.MatchOrigin(pagePattern)
	if err != nil {
		slog.Warn("subserver: invalid page origin pattern, using default",
			slog.String("pattern", pagePattern), slog.Any("error", err))
		pagePolicy = bridge.MustMatchOrigin(bridge.PageOriginPattern)
	}

	r := &Runtime{}
	r.viewerEnd, r.privilegedEnd = bridge.NewPipe(extOrigin, pageOrigin)
	r.pageClientEnd, r.pageEnd = bridge.NewPipe(pageOrigin, pageOrigin)

	r.pageClient = bridge.NewClient("privileged->page", r.pageClientEnd, pagePolicy)
	r.page = newPageHost(pagePolicy, opts.PageNet)

	pageUp := &bridgeUpstream{client: r.pageClient, timeout: c.PageTimeout}
	resolver := &sources.Resolver{Direct: opts.Direct, Page: pageUp}
	policy := c.Policy
	if len(policy.Strategies) == 0 {
		policy = engine.DefaultPolicy()
	}
	pipeline := sources.PipelineFromPolicy(policy, opts.Direct, pageUp, opts.Panels)
	r.Session = sources.NewSession(resolver, pipeline, c.PreferredLangs)

	r.privileged = r.newPrivilegedHost(bridge.ExactOrigin(extOrigin))
	r.Viewer = viewer.New(bridge.NewClient("viewer", r.viewerEnd, pagePolicy), c.CaptionsTimeout, c.SubtitlesTimeout)

	slog.Info("subserver: runtime ready",
		slog.String("extension_origin", extOrigin),
		slog.Any("strategies", pipeline.Strategies()))
	return r
}

// Start serves both hosts until ctx ends.
func (r *Runtime) Start(ctx context.Context) {
	go r.serve(ctx, "privileged", r.privileged, r.privilegedEnd)
	go r.serve(ctx, "page", r.page, r.pageEnd)
}

func (r *Runtime) serve(ctx context.Context, name string, h *bridge.Host, t bridge.Transport) {
	if err := h.Serve(ctx, t); err != nil && ctx.Err() == nil {
		slog.Warn("subserver: host stopped", slog.String("host", name), slog.Any("error", err))
	}
}

// Close shuts every pipe down.
func (r *Runtime) Close() {
	for _, t := range []bridge.Transport{r.viewerEnd, r.privilegedEnd, r.pageClientEnd, r.pageEnd} {
		_ = t.Close()
	}
}

// BridgeHandler serves the privileged host to external viewers over websocket.
func (r *Runtime) BridgeHandler() http.Handler {
	return bridge.ServeWS(r.privileged)
}

// Position is the last seek target in seconds.
func (r *Runtime) Position() float64 {
	return math.Float64frombits(r.position.Load())
}

func (r *Runtime) seek(sec float64) {
	r.position.Store(math.Float64bits(sec))
}
