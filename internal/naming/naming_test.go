package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralize(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"chat", "chats"},
		{"user", "users"},
		{"category", "categories"},
		{"person", "people"},
		{"status", "statuses"},
		{"message", "messages"},
		{"chat_message", "chat_messages"},
		{"sent_chat", "sent_chats"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.Pluralize(tt.input))
		})
	}
}

func TestPluralizeWithOverrides(t *testing.T) {
	namer := New(Config{PluralOverrides: map[string]string{"staff": "staff"}}, nil)

	assert.Equal(t, "staff", namer.Pluralize("staff"))
	assert.Equal(t, "users", namer.Pluralize("user")) // Falls back to library
	assert.Equal(t, "chat_staff", namer.Pluralize("chat_staff"))
}

func TestPluralizeWholeNameOverrideWins(t *testing.T) {
	namer := New(Config{PluralOverrides: map[string]string{"message": "msgs", "chat_message": "conversation"}}, nil)

	assert.Equal(t, "conversation", namer.Pluralize("chat_message"))
	assert.Equal(t, "direct_msgs", namer.Pluralize("direct_message"))
}

func TestAssociationName(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"Chat", "chats"},
		{"User", "users"},
		{"ChatMessage", "chat_messages"},
		{"Person", "people"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.AssociationName(tt.input))
		})
	}
}

func TestAssociationNameOverride(t *testing.T) {
	namer := New(Config{PluralOverrides: map[string]string{"message": "msgs"}}, nil)
	assert.Equal(t, "chat_msgs", namer.AssociationName("ChatMessage"))
}

func TestTypeName(t *testing.T) {
	namer := Default()
	assert.Equal(t, "ChatMessages", namer.TypeName("chat_messages"))
	assert.Equal(t, "Chat", namer.TypeName("chat"))
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"timestamp", "timestamp"},
		{"Timestamp", "timestamp"},
		{"createdAt", "created_at"},
		{"created_at", "created_at"},
		{"FromID", "from_id"},
		{" message ", "message"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ColumnName(tt.input))
		})
	}
}
