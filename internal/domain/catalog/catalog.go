// Package catalog describes the fixed, ordered set of rating sources and the
// subsets of it that composite rankings are computed over.
package catalog

import (
	"fmt"
	"strings"

	"github.com/okian/hoopsrank/internal/domain/model"
)

// SignatureSeparator joins short keys inside a subset signature.
const SignatureSeparator = "_"

// maxSources bounds the catalog so the power set stays tractable.
const maxSources = 12

// FieldRef points at one raw column of a source.
type FieldRef struct {
	Key           string
	LowerIsBetter bool
}

// SourceSystem is the static descriptor of one rating source.
type SourceSystem struct {
	Key       string
	Short     string
	Overall   FieldRef
	Offensive *FieldRef
	Defensive *FieldRef
}

// Field returns the source's column for d, if it defines one.
func (s SourceSystem) Field(d model.Dimension) (FieldRef, bool) {
	switch d {
	case model.Overall:
		return s.Overall, true
	case model.Offensive:
		if s.Offensive != nil {
			return *s.Offensive, true
		}
	case model.Defensive:
		if s.Defensive != nil {
			return *s.Defensive, true
		}
	}
	return FieldRef{}, false
}

// RankOnly reports whether the source publishes nothing but an overall rank.
func (s SourceSystem) RankOnly() bool {
	return s.Offensive == nil && s.Defensive == nil
}

// Catalog is an immutable ordered list of sources.
type Catalog struct {
	sources []SourceSystem
	index   map[string]int // by Key and by Short
}

// New builds a catalog in the given order.
func New(sources ...SourceSystem) (*Catalog, error) {
	if len(sources) == 0 {
		return nil, ErrEmptyCatalog
	}
	if len(sources) > maxSources {
		return nil, fmt.Errorf("%w: %d sources", ErrCatalogTooLarge, len(sources))
	}
	c := &Catalog{
		sources: make([]SourceSystem, len(sources)),
		index:   make(map[string]int, 2*len(sources)),
	}
	for i, s := range sources {
		key := strings.ToLower(strings.TrimSpace(s.Key))
		short := strings.ToLower(strings.TrimSpace(s.Short))
		if key == "" || short == "" || s.Overall.Key == "" {
			return nil, fmt.Errorf("%w: source %d is missing a key or overall field", ErrInvalidSource, i)
		}
		if strings.Contains(short, SignatureSeparator) {
			return nil, fmt.Errorf("%w: short key %q contains %q", ErrInvalidSource, short, SignatureSeparator)
		}
		for _, k := range []string{key, short} {
			if j, ok := c.index[k]; ok && j != i {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateSource, k)
			}
			c.index[k] = i
		}
		s.Key, s.Short = key, short
		c.sources[i] = s
	}
	return c, nil
}

// Default returns the four-source college basketball catalog.
func Default() *Catalog {
	c, err := New(
		SourceSystem{
			Key:       "kenpom",
			Short:     "kp",
			Overall:   FieldRef{Key: "adj_em"},
			Offensive: &FieldRef{Key: "adj_o"},
			Defensive: &FieldRef{Key: "adj_d", LowerIsBetter: true},
		},
		SourceSystem{
			Key:       "evanmiya",
			Short:     "em",
			Overall:   FieldRef{Key: "relative_rating"},
			Offensive: &FieldRef{Key: "o_rate"},
			Defensive: &FieldRef{Key: "d_rate"},
		},
		SourceSystem{
			Key:       "barttorvik",
			Short:     "bt",
			Overall:   FieldRef{Key: "barthag"},
			Offensive: &FieldRef{Key: "adj_oe"},
			Defensive: &FieldRef{Key: "adj_de", LowerIsBetter: true},
		},
		SourceSystem{
			Key:     "net",
			Short:   "net",
			Overall: FieldRef{Key: "net_rank", LowerIsBetter: true},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of sources.
func (c *Catalog) Len() int { return len(c.sources) }

// Sources returns the sources in catalog order.
func (c *Catalog) Sources() []SourceSystem {
	out := make([]SourceSystem, len(c.sources))
	copy(out, c.sources)
	return out
}

// Keys returns source keys in catalog order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.sources))
	for i, s := range c.sources {
		out[i] = s.Key
	}
	return out
}

// Lookup finds a source by key or short key, case-insensitively.
func (c *Catalog) Lookup(key string) (SourceSystem, bool) {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return SourceSystem{}, false
	}
	return c.sources[i], true
}

// Full returns the subset holding every source.
func (c *Catalog) Full() Subset {
	return Subset{catalog: c, mask: (uint(1) << len(c.sources)) - 1}
}

// Subset builds a subset from keys or short keys in any order.
func (c *Catalog) Subset(keys ...string) (Subset, error) {
	var mask uint
	for _, k := range keys {
		i, ok := c.index[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			return Subset{}, fmt.Errorf("%w: %q", ErrUnknownSource, k)
		}
		if mask&(1<<i) != 0 {
			return Subset{}, fmt.Errorf("%w: %q listed twice", ErrDuplicateSource, k)
		}
		mask |= 1 << i
	}
	if mask == 0 {
		return Subset{}, ErrEmptySubset
	}
	return Subset{catalog: c, mask: mask}, nil
}

// ParseSignature turns a signature back into a subset. Members may appear in
// any order; the result is canonical.
func (c *Catalog) ParseSignature(sig string) (Subset, error) {
	if strings.TrimSpace(sig) == "" {
		return Subset{}, ErrEmptySubset
	}
	return c.Subset(strings.Split(sig, SignatureSeparator)...)
}

// PowerSet enumerates every non-empty subset, 2^N-1 of them, by bitmask.
func (c *Catalog) PowerSet() []Subset {
	total := uint(1) << len(c.sources)
	out := make([]Subset, 0, total-1)
	for mask := uint(1); mask < total; mask++ {
		out = append(out, Subset{catalog: c, mask: mask})
	}
	return out
}

// Subset is a non-empty set of catalog sources.
type Subset struct {
	catalog *Catalog
	mask    uint
}

// Members returns the member sources in catalog order.
func (s Subset) Members() []SourceSystem {
	out := make([]SourceSystem, 0, s.Len())
	for i, src := range s.catalog.sources {
		if s.mask&(1<<i) != 0 {
			out = append(out, src)
		}
	}
	return out
}

// Len returns the number of members.
func (s Subset) Len() int {
	n := 0
	for m := s.mask; m != 0; m &= m - 1 {
		n++
	}
	return n
}

// Contains reports whether the source with key is a member.
func (s Subset) Contains(key string) bool {
	i, ok := s.catalog.index[strings.ToLower(key)]
	return ok && s.mask&(1<<i) != 0
}

// IsFull reports whether the subset is the whole catalog.
func (s Subset) IsFull() bool {
	return s.catalog != nil && s.mask == s.catalog.Full().mask
}

// Signature returns the canonical identity string of the subset.
func (s Subset) Signature() string {
	members := s.Members()
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = m.Short
	}
	return strings.Join(parts, SignatureSeparator)
}

// String implements fmt.Stringer.
func (s Subset) String() string { return s.Signature() }
