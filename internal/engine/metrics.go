package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anatolykoptev/go_subsearch/internal/bridge"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	FetchRequests      atomic.Int64
	FetchErrors        atomic.Int64
	TrackResolutions   atomic.Int64
	TokenRecoveries    atomic.Int64
	TranscriptRequests atomic.Int64
	TranscriptFailures atomic.Int64
	StoreHits          atomic.Int64
	TimedTextHits      atomic.Int64
	TranscriptAPIHits  atomic.Int64
	InitialDataHits    atomic.Int64
	DOMHits            atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache and bridge stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	m := map[string]int64{
		"fetch_requests":      metrics.FetchRequests.Load(),
		"fetch_errors":        metrics.FetchErrors.Load(),
		"track_resolutions":   metrics.TrackResolutions.Load(),
		"token_recoveries":    metrics.TokenRecoveries.Load(),
		"transcript_requests": metrics.TranscriptRequests.Load(),
		"transcript_failures": metrics.TranscriptFailures.Load(),
		"store_hits":          metrics.StoreHits.Load(),
		"strategy_timedtext":  metrics.TimedTextHits.Load(),
		"strategy_transcript": metrics.TranscriptAPIHits.Load(),
		"strategy_initial":    metrics.InitialDataHits.Load(),
		"strategy_dom":        metrics.DOMHits.Load(),
		"cache_hits":          hits,
		"cache_misses":        misses,
	}
	maps.Copy(m, bridge.Counters())
	return m
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range slices.Sorted(maps.Keys(m)) {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ sub-package.
func IncrTrackResolution()   { metrics.TrackResolutions.Add(1) }
func IncrTokenRecovery()     { metrics.TokenRecoveries.Add(1) }
func IncrTranscriptRequest() { metrics.TranscriptRequests.Add(1) }
func IncrTranscriptFailure() { metrics.TranscriptFailures.Add(1) }
func IncrStoreHit()          { metrics.StoreHits.Add(1) }

// IncrStrategyHit counts a transcript served by the named strategy.
func IncrStrategyHit(name string) {
	switch name {
	case StrategyTimedText:
		metrics.TimedTextHits.Add(1)
	case StrategyTranscript:
		metrics.TranscriptAPIHits.Add(1)
	case StrategyInitialData:
		metrics.InitialDataHits.Add(1)
	case StrategyDOM:
		metrics.DOMHits.Add(1)
	}
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
