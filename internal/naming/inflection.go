package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize returns the plural of a snake_case name. Only the final word is
// inflected, so "chat_message" becomes "chat_messages". An override for the
// whole name wins over one for the final word.
func (n *Namer) Pluralize(name string) string {
	if override, ok := n.config.PluralOverrides[name]; ok {
		return override
	}
	head, last := "", name
	if idx := strings.LastIndex(name, "_"); idx >= 0 {
		head, last = name[:idx+1], name[idx+1:]
	}
	if override, ok := n.config.PluralOverrides[last]; ok {
		return head + override
	}
	return head + inflection.Plural(last)
}
