// Package policy defines which rows of each entity a principal may see.
// A Scope narrows a collection; it never widens one.
package policy

import (
	"chat-graphql/internal/authz"
	"chat-graphql/internal/planner"
	"chat-graphql/internal/schema"

	sq "github.com/Masterminds/squirrel"
)

// Scope narrows a collection to the rows a principal is allowed to read.
type Scope func(p authz.Principal, c planner.Collection) planner.Collection

// Set maps entity names to their policy scope.
type Set map[string]Scope

// For returns the scope registered for an entity.
func (s Set) For(entity string) (Scope, bool) {
	scope, ok := s[entity]
	return scope, ok && scope != nil
}

// Check reports a ConfigurationError for the first entity without a scope.
func (s Set) Check(entities []schema.Entity) error {
	for _, e := range entities {
		if _, ok := s.For(e.Name); !ok {
			return &schema.ConfigurationError{Entity: e.Name, Reason: "no policy scope is registered"}
		}
	}
	return nil
}

// Default returns the policies for the chat domain.
func Default() Set {
	return Set{
		"Chat": ChatScope,
		"User": UserScope,
	}
}

// ChatScope lets admins read every chat and everyone else read the chats
// they sent or received.
func ChatScope(p authz.Principal, c planner.Collection) planner.Collection {
	if p.Admin {
		return c
	}
	return c.Where(sq.Or{
		sq.Eq{c.Column("from_id"): p.UserID},
		sq.Eq{c.Column("to_id"): p.UserID},
	})
}

// UserScope lets every principal read every user.
func UserScope(_ authz.Principal, c planner.Collection) planner.Collection {
	return c
}
