package subserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anatolykoptev/go_subsearch/internal/bridge"
	"github.com/anatolykoptev/go_subsearch/internal/engine/sources"
)

// Page-level actions served by the page host.
const (
	ActionPageFetchText = "PAGE.FETCH_TEXT"
	ActionPagePostJSON  = "PAGE.POST_JSON"
)

type fetchTextPayload struct {
	URL string `json:"url"`
}

type postJSONPayload struct {
	URL     string            `json:"url"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

var errNoURL = errors.New("url is required")

// newPageHost serves fetches made with the page's network identity.
func newPageHost(policy bridge.OriginPolicy, net sources.Upstream) *bridge.Host {
	h := bridge.NewHost("page", policy)
	h.Handle(ActionPageFetchText, func(ctx context.Context, req *bridge.Envelope) (map[string]any, error) {
		var p fetchTextPayload
		if err := req.DecodePayload(&p); err != nil {
			return nil, err
		}
		if p.URL == "" {
			return nil, errNoURL
		}
		body, err := net.FetchText(ctx, p.URL)
		if err != nil {
			return nil, err
		}
		return map[string]any{"text": string(body)}, nil
	})
	h.Handle(ActionPagePostJSON, func(ctx context.Context, req *bridge.Envelope) (map[string]any, error) {
		var p postJSONPayload
		if err := req.DecodePayload(&p); err != nil {
			return nil, err
		}
		if p.URL == "" {
			return nil, errNoURL
		}
		body, err := net.PostJSON(ctx, p.URL, p.Body, p.Headers)
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("non-JSON response from %s", p.URL)
		}
		return map[string]any{"json": json.RawMessage(body)}, nil
	})
	return h
}

// bridgeUpstream is the page context seen from the privileged side: every
// request is a bridge call to the page host.
type bridgeUpstream struct {
	client  *bridge.Client
	timeout time.Duration
}

func (u *bridgeUpstream) FetchText(ctx context.Context, rawURL string) ([]byte, error) {
	env, err := u.client.Call(ctx, ActionPageFetchText, fetchTextPayload{URL: rawURL}, u.timeout)
	if err != nil {
		return nil, err
	}
	var text string
	if _, err := env.Field("text", &text); err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (u *bridgeUpstream) PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	env, err := u.client.Call(ctx, ActionPagePostJSON, postJSONPayload{URL: rawURL, Body: raw, Headers: headers}, u.timeout)
	if err != nil {
		return nil, err
	}
	out, ok := env.Fields["json"]
	if !ok {
		return nil, errors.New("reply has no json field")
	}
	return out, nil
}
