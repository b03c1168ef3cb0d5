// Package toolutil provides shared helpers for the MCP tools and the
// transcript session: typed access to the engine cache and language lists.
package toolutil

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anatolykoptev/go_subsearch/internal/engine"
)

// CacheLoadJSON tries to load a cached value of type T from the engine cache.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, key string) (T, bool) {
	cached, ok := engine.CacheGet(ctx, key)
	if !ok {
		var zero T
		return zero, false
	}
	var out T
	if err := json.Unmarshal(cached, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// CacheStoreJSON marshals v and stores it in the engine cache.
func CacheStoreJSON[T any](ctx context.Context, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	engine.CacheSet(ctx, key, data)
}

// NormLangs lowercases and trims a language preference list, dropping empties.
// An empty result falls back to the configured preferred languages.
func NormLangs(langs []string) []string {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		out = append(out, engine.Cfg.Policy.PreferredLangs...)
	}
	if len(out) == 0 {
		out = append(out, "en")
	}
	return out
}
