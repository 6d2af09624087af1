package ranker

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

// Profile is a validated, immutable field weight profile. Its active fields,
// those with a positive weight, are fixed at construction.
type Profile struct {
	name       string
	weights    [document.NumFields]float64
	normalized [document.NumFields]float64
	active     []document.Field
}

// NewProfile validates weights and precomputes normalized weights
// W[f] / Σ W over active fields. Negative or non-finite weights are
// configuration errors; a profile without a positive weight is
// ErrEmptyProfile.
func NewProfile(name string, weights map[document.Field]float64) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Configf("profile name must not be empty")
	}
	p := &Profile{name: name}
	var sum float64
	for f, w := range weights {
		if !f.Valid() {
			return nil, fmt.Errorf("profile %q: %w: %d", name, apperrors.ErrUnknownField, uint8(f))
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, apperrors.Configf("profile %q: weight of %s must be a finite non-negative number, got %v", name, f, w)
		}
		p.weights[f] = w
	}
	for _, f := range document.AllFields {
		if p.weights[f] > 0 {
			p.active = append(p.active, f)
			sum += p.weights[f]
		}
	}
	if len(p.active) == 0 {
		return nil, fmt.Errorf("profile %q: %w", name, apperrors.ErrEmptyProfile)
	}
	for _, f := range p.active {
		p.normalized[f] = p.weights[f] / sum
	}
	return p, nil
}

// ParseProfile builds a profile from field names, rejecting unknown ones.
func ParseProfile(name string, weights map[string]float64) (*Profile, error) {
	byField := make(map[document.Field]float64, len(weights))
	for fieldName, w := range weights {
		f, err := document.ParseField(fieldName)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		byField[f] = w
	}
	return NewProfile(name, byField)
}

// Name returns the profile name.
func (p *Profile) Name() string { return p.name }

// Weight returns the raw weight of f.
func (p *Profile) Weight(f document.Field) float64 {
	if !f.Valid() {
		return 0
	}
	return p.weights[f]
}

// NormalizedWeight returns W[f] / Σ W over active fields; 0 for inactive
// fields.
func (p *Profile) NormalizedWeight(f document.Field) float64 {
	if !f.Valid() {
		return 0
	}
	return p.normalized[f]
}

// ActiveFields returns the fields with a positive weight in canonical
// order.
func (p *Profile) ActiveFields() []document.Field {
	return append([]document.Field(nil), p.active...)
}

// Weights returns the raw weights of the active fields keyed by name.
func (p *Profile) Weights() map[string]float64 {
	out := make(map[string]float64, len(p.active))
	for _, f := range p.active {
		out[f.String()] = p.weights[f]
	}
	return out
}

// Built-in profile names.
const (
	ProfileBM25     = "bm25"
	ProfileTFIDF    = "tfidf"
	ProfileLMD      = "lmd"
	ProfileMetadata = "metadata"
	ProfileContent  = "content"
	ProfileAll      = "all"
)

func builtinWeights() map[string]map[document.Field]float64 {
	uniform := func(fields []document.Field) map[document.Field]float64 {
		m := make(map[document.Field]float64, len(fields))
		for _, f := range fields {
			m[f] = 1
		}
		return m
	}
	return map[string]map[document.Field]float64{
		ProfileBM25: {
			document.Title: 1, document.Description: 0.9, document.Author: 0.9, document.Tags: 0.6,
			document.Classes: 0.2, document.Entities: 0.3, document.Literals: 0.1, document.Properties: 0.1,
		},
		ProfileTFIDF: {
			document.Title: 1, document.Description: 0.7, document.Author: 0.9, document.Tags: 0.9,
			document.Classes: 0.8, document.Entities: 0.5, document.Literals: 0.1, document.Properties: 0.4,
		},
		ProfileLMD: {
			document.Title: 1, document.Description: 0.1, document.Author: 0.5, document.Tags: 0.9,
			document.Classes: 0.1, document.Entities: 0.1, document.Literals: 0.4, document.Properties: 0.6,
		},
		ProfileMetadata: uniform(document.MetadataFields),
		ProfileContent:  uniform(document.ContentFields),
		ProfileAll:      uniform(document.AllFields),
	}
}

// Registry resolves profiles by name. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewRegistry returns a registry holding the built-in profiles plus those
// declared in configuration. A configured profile replaces a built-in one
// of the same name.
func NewRegistry(set config.ProfileSet) (*Registry, error) {
	r := &Registry{profiles: make(map[string]*Profile)}
	for name, weights := range builtinWeights() {
		p, err := NewProfile(name, weights)
		if err != nil {
			return nil, fmt.Errorf("built-in profile %q: %w", name, err)
		}
		r.profiles[name] = p
	}
	for name, weights := range set {
		p, err := ParseProfile(name, weights)
		if err != nil {
			return nil, err
		}
		r.profiles[p.Name()] = p
	}
	return r, nil
}

// Register adds or replaces a profile.
func (r *Registry) Register(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Name()] = p
}

// Get returns the named profile or ErrUnknownProfile.
func (r *Registry) Get(name string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownProfile, name)
	}
	return p, nil
}

// Names returns the registered profile names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
