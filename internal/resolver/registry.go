package resolver

import (
	"fmt"

	"chat-graphql/internal/filter"
	"chat-graphql/internal/naming"
	"chat-graphql/internal/policy"
	"chat-graphql/internal/schema"
)

// Registry is the read-only set of entities the engine resolves, together with
// each entity's filter whitelist and policy scope. It is built once at startup
// and is safe for concurrent use without locking.
type Registry struct {
	entities map[string]schema.Entity
	order    []string
	filters  map[string]*filter.Schema
	policies policy.Set
	namer    *naming.Namer
}

// NewRegistry validates the entities and derives their filter whitelists.
// Configuration defects are reported as *schema.ConfigurationError.
func NewRegistry(entities []schema.Entity, policies policy.Set, namer *naming.Namer) (*Registry, error) {
	if namer == nil {
		namer = naming.Default()
	}
	reg := &Registry{
		entities: make(map[string]schema.Entity, len(entities)),
		filters:  make(map[string]*filter.Schema, len(entities)),
		policies: policies,
		namer:    namer,
	}

	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := reg.entities[e.Name]; dup {
			return nil, &schema.ConfigurationError{Entity: e.Name, Reason: "entity registered twice"}
		}
		fs, err := filter.BuildSchema(e)
		if err != nil {
			return nil, err
		}
		reg.entities[e.Name] = e
		reg.filters[e.Name] = fs
		reg.order = append(reg.order, e.Name)
	}

	if err := policies.Check(entities); err != nil {
		return nil, err
	}
	if err := reg.checkRelations(); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) checkRelations() error {
	for _, name := range r.order {
		e := r.entities[name]
		for _, rel := range e.BelongsTo {
			if _, ok := r.entities[rel.Target]; !ok {
				return &schema.ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("belongs-to %q targets unknown entity %q", rel.Name, rel.Target)}
			}
		}
		for _, rel := range e.HasMany {
			target, ok := r.entities[rel.Target]
			if !ok {
				return &schema.ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("has-many %q targets unknown entity %q", rel.Name, rel.Target)}
			}
			if !target.HasColumn(rel.ForeignKey) {
				return &schema.ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("has-many %q foreign key %q is not a column of %s", rel.Name, rel.ForeignKey, target.Name)}
			}
		}
	}
	return nil
}

// Entity returns a registered entity by name.
func (r *Registry) Entity(name string) (schema.Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Entities returns the registered entities in registration order.
func (r *Registry) Entities() []schema.Entity {
	out := make([]schema.Entity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entities[name])
	}
	return out
}

// FilterSchema returns the filter whitelist of a registered entity.
func (r *Registry) FilterSchema(name string) (*filter.Schema, bool) {
	fs, ok := r.filters[name]
	return fs, ok
}

// Scope returns the policy scope of a registered entity.
func (r *Registry) Scope(name string) (policy.Scope, bool) {
	return r.policies.For(name)
}

// Namer returns the naming conventions used for association inference.
func (r *Registry) Namer() *naming.Namer {
	return r.namer
}

// relation resolves the has-many association a parent uses to reach child.
// An empty name is inferred from the child entity's name.
func (r *Registry) relation(parentName, childName, name string) (schema.HasMany, error) {
	parent, ok := r.entities[parentName]
	if !ok {
		return schema.HasMany{}, &schema.ConfigurationError{Entity: childName, Reason: fmt.Sprintf("unknown parent entity %q", parentName)}
	}
	if name == "" {
		name = r.namer.AssociationName(childName)
	}
	rel, ok := parent.HasManyByName(name)
	if !ok {
		return schema.HasMany{}, &schema.ConfigurationError{Entity: parentName, Reason: fmt.Sprintf("no association %q", name)}
	}
	if rel.Target != childName {
		return schema.HasMany{}, &schema.ConfigurationError{Entity: parentName, Reason: fmt.Sprintf("association %q targets %s, not %s", name, rel.Target, childName)}
	}
	return rel, nil
}
