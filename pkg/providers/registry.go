package providers

import (
	"log/slog"
	"strings"
)

// Sources of the registry's default provider.
const (
	DefaultSourceConfigured = "configured"
	DefaultSourceFallback   = "fallback"
)

// Registry holds the validated provider descriptor set. It is built once at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	descriptors map[string]*Descriptor
	order       []string
	aliases     map[string]string

	defaultName   string
	defaultSource string
}

// NewRegistry validates and indexes the given descriptors. Invalid
// descriptors are skipped with a warning; initialization fails only when no
// descriptor survives validation. If defaultName does not name a surviving
// descriptor, the first loaded one becomes the default and the default
// source is recorded as fallback.
func NewRegistry(descriptors []Descriptor, defaultName string, aliases map[string]string) (*Registry, error) {
	r := &Registry{
		descriptors: make(map[string]*Descriptor, len(descriptors)),
		aliases:     make(map[string]string, len(aliases)),
	}
	for alias, target := range aliases {
		r.aliases[alias] = target
	}

	for i := range descriptors {
		d := descriptors[i]
		d.ApplyDefaults()
		if err := d.Validate(); err != nil {
			slog.Warn("skipping invalid provider descriptor",
				"provider", d.Name,
				"error", err,
			)
			continue
		}
		if _, dup := r.descriptors[d.Name]; dup {
			slog.Warn("skipping duplicate provider descriptor", "provider", d.Name)
			continue
		}
		r.descriptors[d.Name] = &d
		r.order = append(r.order, d.Name)
	}

	if len(r.order) == 0 {
		return nil, &ConfigError{Field: "providers", Message: "no valid provider descriptors loaded"}
	}

	if _, ok := r.descriptors[defaultName]; ok {
		r.defaultName = defaultName
		r.defaultSource = DefaultSourceConfigured
	} else {
		r.defaultName = r.order[0]
		r.defaultSource = DefaultSourceFallback
		if defaultName != "" {
			slog.Warn("configured default provider not loaded, falling back",
				"configured", defaultName,
				"fallback", r.defaultName,
			)
		}
	}

	slog.Info("provider registry initialized",
		"providers", len(r.order),
		"default", r.defaultName,
		"default_source", r.defaultSource,
	)
	return r, nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	d, ok := r.descriptors[name]
	if !ok {
		return nil, &ProviderNotFoundError{Provider: name}
	}
	return d, nil
}

// List returns all descriptors in load order.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Default returns the default descriptor.
func (r *Registry) Default() *Descriptor {
	return r.descriptors[r.defaultName]
}

// DefaultSource reports whether the default came from configuration or from
// first-loaded fallback.
func (r *Registry) DefaultSource() string {
	return r.defaultSource
}

// Resolve maps a client model string to a descriptor and the model name to
// send upstream. Aliases are resolved first. A "name:model" prefix selects
// that provider; a prefix that names no registered provider is a
// ProviderNotFoundError, so a typo'd provider surfaces as not-found instead
// of reaching the default upstream as an unknown model.
func (r *Registry) Resolve(model string) (*Descriptor, string, error) {
	if target, ok := r.aliases[model]; ok {
		model = target
	}

	if prefix, rest, found := strings.Cut(model, ":"); found && rest != "" {
		if d, ok := r.descriptors[prefix]; ok {
			return d, rest, nil
		}
		return nil, "", &ProviderNotFoundError{Provider: prefix}
	}
	return r.Default(), model, nil
}
