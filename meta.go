package kvo

import (
	"fmt"

	"github.com/pumped-fn/kvo/pkg/proppath"
)

// descriptor is an installed property
type descriptor struct {
	prop     *Property
	mode     accessMode
	watching [][]string
}

// meta is the per-object record behind an Observable. It is created on
// first need and lives exactly as long as the object embedding it.
type meta struct {
	descriptors map[string]*descriptor
	cache       *slots[any]
	lastSet     *slots[any]
}

func (o *Observable) meta(create bool) *meta {
	if o.record == nil && create {
		o.record = &meta{
			descriptors: make(map[string]*descriptor),
			cache:       newSlots[any](),
			lastSet:     newSlots[any](),
		}
	}
	return o.record
}

func (o *Observable) descriptor(key string) *descriptor {
	m := o.meta(false)
	if m == nil {
		return nil
	}
	return m.descriptors[key]
}

// newDescriptor validates p and tokenizes its dependency paths. It does not
// touch p, so a failed install leaves the declaration reusable.
func newDescriptor(key string, p *Property) (*descriptor, error) {
	if p == nil || p.fn == nil {
		return nil, &NotCallableError{What: fmt.Sprintf("property %q", key)}
	}

	watching := make([][]string, 0, len(p.dependentKeys))
	for _, dep := range p.dependentKeys {
		segs, err := proppath.Tokenize(dep)
		if err != nil {
			return nil, fmt.Errorf("dependent key of %q: %w", key, err)
		}
		watching = append(watching, segs)
	}

	return &descriptor{
		prop:     p,
		mode:     p.mode(),
		watching: watching,
	}, nil
}

func (m *meta) install(key string, d *descriptor) {
	d.prop.installed = true
	m.descriptors[key] = d
	m.cache.Delete(key)
	m.lastSet.Delete(key)
}
