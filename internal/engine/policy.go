package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transcript acquisition strategy names, in default order.
const (
	StrategyTimedText   = "timedtext"
	StrategyTranscript  = "transcript_api"
	StrategyInitialData = "initial_data"
	StrategyDOM         = "dom"
)

var knownStrategies = []string{StrategyTimedText, StrategyTranscript, StrategyInitialData, StrategyDOM}

// Policy is the tunable part of transcript acquisition. It is read from an
// optional YAML file; fields absent from the file keep their defaults.
type Policy struct {
	Strategies     []string  `yaml:"strategies"`
	PreferredLangs []string  `yaml:"preferred_langs"`
	DOM            DOMPolicy `yaml:"dom"`
}

// DOMPolicy bounds the two polling phases of the transcript panel scrape.
type DOMPolicy struct {
	SegmentsInterval time.Duration `yaml:"segments_interval"`
	SegmentsTimeout  time.Duration `yaml:"segments_timeout"`
	TextInterval     time.Duration `yaml:"text_interval"`
	TextTimeout      time.Duration `yaml:"text_timeout"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		Strategies:     slices.Clone(knownStrategies),
		PreferredLangs: []string{"en"},
		DOM: DOMPolicy{
			SegmentsInterval: 300 * time.Millisecond,
			SegmentsTimeout:  8 * time.Second,
			TextInterval:     200 * time.Millisecond,
			TextTimeout:      5 * time.Second,
		},
	}
}

// LoadPolicy reads path over DefaultPolicy. An empty path or a missing file
// yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("policy: file not found, using defaults", slog.String("path", path))
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return DefaultPolicy(), fmt.Errorf("parse policy %s: %w", path, err)
	}
	p.normalize()
	return p, nil
}

// WithStrategies overrides the strategy order when names is non-empty.
func (p Policy) WithStrategies(names []string) Policy {
	if len(names) == 0 {
		return p
	}
	p.Strategies = names
	p.normalize()
	return p
}

// normalize lowercases strategy names, drops unknown ones and repeats, and
// restores defaults for anything left empty or non-positive.
func (p *Policy) normalize() {
	def := DefaultPolicy()

	var order []string
	for _, s := range p.Strategies {
		s = strings.ToLower(strings.TrimSpace(s))
		if !slices.Contains(knownStrategies, s) {
			if s != "" {
				slog.Warn("policy: unknown strategy ignored", slog.String("strategy", s))
			}
			continue
		}
		if !slices.Contains(order, s) {
			order = append(order, s)
		}
	}
	if len(order) == 0 {
		order = def.Strategies
	}
	p.Strategies = order

	if len(p.PreferredLangs) == 0 {
		p.PreferredLangs = def.PreferredLangs
	}
	if p.DOM.SegmentsInterval <= 0 {
		p.DOM.SegmentsInterval = def.DOM.SegmentsInterval
	}
	if p.DOM.SegmentsTimeout <= 0 {
		p.DOM.SegmentsTimeout = def.DOM.SegmentsTimeout
	}
	if p.DOM.TextInterval <= 0 {
		p.DOM.TextInterval = def.DOM.TextInterval
	}
	if p.DOM.TextTimeout <= 0 {
		p.DOM.TextTimeout = def.DOM.TextTimeout
	}
}
