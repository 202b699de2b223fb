package naming

import (
	"log/slog"
	"strings"

	"github.com/iancoleman/strcase"
)

// Namer converts entity and field names between the API naming convention
// and storage names. It carries the configured pluralization overrides.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PluralOverrides == nil {
		cfg.PluralOverrides = make(map[string]string)
	}
	return &Namer{
		config: cfg,
		logger: logger,
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// AssociationName infers the has-many association a parent uses for a child entity.
// Example: "Chat" -> "chats", "ChatMessage" -> "chat_messages"
func (n *Namer) AssociationName(entityName string) string {
	snake := ColumnName(entityName)
	if snake == "" {
		return ""
	}
	name := n.Pluralize(snake)
	n.logger.Debug("inferred association name", slog.String("entity", entityName), slog.String("association", name))
	return name
}

// TypeName converts an entity or table name to a GraphQL type name (PascalCase).
// Example: "chat_messages" -> "ChatMessages"
func (n *Namer) TypeName(name string) string {
	return strcase.ToCamel(name)
}

// ColumnName normalizes a caller-supplied field name to the snake_case storage convention.
// Example: "createdAt" -> "created_at", "Timestamp" -> "timestamp"
func ColumnName(field string) string {
	return strcase.ToSnake(strings.TrimSpace(field))
}
