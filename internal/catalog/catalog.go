package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/license"
)

// Catalog is the immutable provider configuration built once at startup and passed by
// reference into each component.
type Catalog struct {
	providers []climate.ProviderDescriptor
	byID      map[string]climate.ProviderDescriptor
	Licenses  *license.Registry
}

// File is the on-disk form accepted by LoadFile.
type File struct {
	Providers []climate.ProviderDescriptor `json:"providers"`
	Licenses  []license.License            `json:"licenses"`
}

// New validates descriptors and licenses. Every provider must have at least one license.
func New(providers []climate.ProviderDescriptor, licenses []license.License, opts ...license.Option) (*Catalog, error) {
	reg, err := license.NewRegistry(licenses, opts...)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		byID:     make(map[string]climate.ProviderDescriptor, len(providers)),
		Licenses: reg,
	}
	for _, p := range providers {
		if err := validateDescriptor(p); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("provider %q registered twice", p.ID)
		}
		if len(reg.ForProvider(p.ID)) == 0 {
			return nil, fmt.Errorf("provider %q has no license", p.ID)
		}
		c.byID[p.ID] = p
		c.providers = append(c.providers, p)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default(opts ...license.Option) (*Catalog, error) {
	return New(DefaultProviders(), DefaultLicenses(), opts...)
}

// LoadFile reads a JSON catalog; an empty path yields the default catalog.
func LoadFile(path string, opts ...license.Option) (*Catalog, error) {
	if path == "" {
		return Default(opts...)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(f.Providers, f.Licenses, opts...)
}

// Get looks a provider up by id.
func (c *Catalog) Get(id string) (climate.ProviderDescriptor, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Providers returns all descriptors in registration order.
func (c *Catalog) Providers() []climate.ProviderDescriptor {
	out := make([]climate.ProviderDescriptor, len(c.providers))
	copy(out, c.providers)
	return out
}

// SortByPriority orders ids by descriptor priority, then id. Unknown ids sort last.
func (c *Catalog) SortByPriority(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		pi, iok := c.byID[ids[i]]
		pj, jok := c.byID[ids[j]]
		if iok != jok {
			return iok
		}
		if pi.EffectivePriority() != pj.EffectivePriority() {
			return pi.EffectivePriority() < pj.EffectivePriority()
		}
		return ids[i] < ids[j]
	})
}

func validateDescriptor(p climate.ProviderDescriptor) error {
	if p.ID == "" {
		return fmt.Errorf("provider descriptor without id")
	}
	if !p.Coverage.Global && p.Coverage.BBox == nil {
		return fmt.Errorf("provider %q: coverage needs global or bbox", p.ID)
	}
	if b := p.Coverage.BBox; b != nil && (b.West > b.East || b.South > b.North) {
		return fmt.Errorf("provider %q: inverted bbox", p.ID)
	}
	if len(p.APIs) == 0 {
		return fmt.Errorf("provider %q: no apis", p.ID)
	}
	for _, v := range p.Variables {
		if !climate.IsKnownVariable(v) {
			return fmt.Errorf("provider %q: unknown variable %q", p.ID, v)
		}
	}
	return nil
}
