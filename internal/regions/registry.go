package regions

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"regionhooks.ai/internal/host"
)

// Registry is the process-wide table of region providers and the codec that
// maps kind tags to the provider able to decode them.
//
// Register every provider before the first query. Registration is not safe
// to run concurrently with queries.
type Registry struct {
	log     *log.Logger
	metrics *Metrics

	providers []Provider
	byName    map[string]Provider
	byKind    map[string]Provider
}

func NewRegistry(logger *log.Logger, m *Metrics) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{
		log:     logger,
		metrics: m,
		byName:  map[string]Provider{},
		byKind:  map[string]Provider{},
	}
}

// Register adds p. Registering the same provider again is a no-op; a
// different provider reusing a name or kind tag is rejected.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("register: nil provider")
	}
	name := strings.ToLower(p.Name())
	kind := p.RegionKind()
	if name == "" || kind == "" {
		return fmt.Errorf("register: provider must have a name and a region kind")
	}
	if cur, ok := r.byName[name]; ok {
		if cur == p {
			return nil
		}
		return fmt.Errorf("register %s: %w: name already registered", p.Name(), ErrConflict)
	}
	if cur, ok := r.byKind[kind]; ok && cur != p {
		return fmt.Errorf("register %s: %w: kind %s bound to %s", p.Name(), ErrConflict, kind, cur.Name())
	}
	r.providers = append(r.providers, p)
	r.byName[name] = p
	r.byKind[kind] = p
	r.log.Printf("regions: registered provider %s (kind=%s multiple_owners=%v)", p.Name(), kind, p.SupportsMultipleOwners())
	return nil
}

// Providers returns the registered providers in registration order.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

func (r *Registry) Provider(name string) (Provider, bool) {
	p, ok := r.byName[strings.ToLower(name)]
	return p, ok
}

// RegionsAt unions the regions every provider reports at loc.
func (r *Registry) RegionsAt(loc host.Location) []Region {
	var out []Region
	seen := map[Key]bool{}
	for _, p := range r.providers {
		var found []Region
		r.guard(p, "regions_at", func() { found = p.RegionsAt(loc) })
		for _, reg := range found {
			if reg == nil {
				continue
			}
			k := KeyOf(reg)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, reg)
		}
	}
	return out
}

// RegionByName asks providers in registration order; the first match wins.
// Registration order is the only tie-break when several backends know the
// same name in the same world.
func (r *Registry) RegionByName(w *host.World, name string) (Region, bool) {
	if w == nil || strings.TrimSpace(name) == "" {
		return nil, false
	}
	for _, p := range r.providers {
		var (
			reg Region
			ok  bool
		)
		r.guard(p, "region_by_name", func() { reg, ok = p.RegionByName(w, name) })
		if ok && reg != nil {
			return reg, true
		}
	}
	return nil, false
}

// CanBuild requires every provider to allow building at loc. With no
// providers registered nothing is protected.
func (r *Registry) CanBuild(p host.Player, loc host.Location) bool {
	for _, prov := range r.providers {
		allowed := false
		r.guard(prov, "can_build", func() { allowed = prov.CanBuild(p, loc) })
		if !allowed {
			return false
		}
	}
	return true
}

func (r *Registry) SupportsMultipleOwners() bool {
	for _, p := range r.providers {
		if p.SupportsMultipleOwners() {
			return true
		}
	}
	return false
}

// Encode produces the persisted record for reg. Only kinds bound by a
// registered provider can be encoded.
func (r *Registry) Encode(reg Region) (Record, error) {
	if reg == nil {
		return Record{}, fmt.Errorf("encode: nil region")
	}
	kind := reg.Kind()
	if _, ok := r.byKind[kind]; !ok {
		return Record{}, fmt.Errorf("encode %s: %w", kind, ErrUnknownKind)
	}
	return Record{Type: kind, Fields: reg.Fields()}, nil
}

// Decode restores a region from a persisted rec. Failures are always
// *CorruptedError.
func (r *Registry) Decode(rec Record) (Region, error) {
	return r.decode(rec, sourceRecord)
}

// Resolve is Decode for references that arrive with a live query rather than
// from persisted state; it is counted separately.
func (r *Registry) Resolve(rec Record) (Region, error) {
	return r.decode(rec, sourceQuery)
}

const (
	sourceRecord = "record"
	sourceQuery  = "query"
)

func (r *Registry) decode(rec Record, source string) (reg Region, err error) {
	p, ok := r.byKind[rec.Type]
	if !ok {
		err = &CorruptedError{Kind: rec.Type, Err: ErrUnknownKind}
		r.metrics.decoded(rec.Type, source, err)
		return nil, err
	}
	defer func() {
		if v := recover(); v != nil {
			r.log.Printf("regions: provider %s: decode panicked: %v", p.Name(), v)
			r.metrics.panicked(p.Name(), "decode")
			reg, err = nil, &CorruptedError{Kind: rec.Type, Err: fmt.Errorf("decode panicked: %v", v)}
		}
		r.metrics.decoded(rec.Type, source, err)
	}()
	reg, err = p.Decode(rec.Fields)
	if err != nil {
		var ce *CorruptedError
		if !errors.As(err, &ce) {
			err = &CorruptedError{Kind: rec.Type, Err: err}
		}
		return nil, err
	}
	if reg == nil {
		return nil, &CorruptedError{Kind: rec.Type, Err: ErrInvalidReference}
	}
	return reg, nil
}

// guard runs fn and converts a provider panic into "no result" so one broken
// backend cannot fail the whole query.
func (r *Registry) guard(p Provider, op string, fn func()) {
	r.metrics.query(p.Name(), op)
	defer func() {
		if v := recover(); v != nil {
			r.log.Printf("regions: provider %s: %s panicked: %v", p.Name(), op, v)
			r.metrics.panicked(p.Name(), op)
		}
	}()
	fn()
}
