package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractQueryMetadata(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		operationName string
		want          *queryMetadata
	}{
		{
			name:  "flat query",
			query: `{ chats { message timestamp } }`,
			want:  &queryMetadata{operationType: "query", fieldCount: 3, selectionDepth: 2},
		},
		{
			name: "query with variables",
			query: `query History($from: ID, $since: String) {
				chat_history(from_user_id: $from, history_since: $since) {
					message
				}
			}`,
			operationName: "History",
			want:          &queryMetadata{operationType: "query", fieldCount: 2, selectionDepth: 2, variableCount: 2},
		},
		{
			name: "nested relations",
			query: `{
				user(id: "1") {
					username
					sent_chats {
						message
						to { username }
					}
				}
			}`,
			// user, username, sent_chats, message, to, username
			want: &queryMetadata{operationType: "query", fieldCount: 6, selectionDepth: 4},
		},
		{
			name:  "mutation",
			query: `mutation { create_chat_message(from_user_id: 1, to_user_id: 2, message: "hi") { errors chat { id } } }`,
			want:  &queryMetadata{operationType: "mutation", fieldCount: 4, selectionDepth: 3},
		},
		{
			name: "selects named operation",
			query: `query List { chats { message } }
				mutation Send { create_chat_message(from_user_id: 1, to_user_id: 2, message: "x") { errors } }`,
			operationName: "Send",
			want:          &queryMetadata{operationType: "mutation", fieldCount: 2, selectionDepth: 2},
		},
		{
			name: "inline fragment does not add depth",
			query: `{
				chats {
					... on Chat { message }
				}
			}`,
			want: &queryMetadata{operationType: "query", fieldCount: 2, selectionDepth: 2},
		},
		{
			name:          "unknown operation name",
			query:         `query List { chats { message } }`,
			operationName: "Other",
		},
		{
			name: "empty query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractQueryMetadata(tt.query, tt.operationName)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractQueryMetadata_ParseError(t *testing.T) {
	got, err := extractQueryMetadata(`{ chats { message }`, "")
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestExtractQueryMetadata_FragmentSpreads(t *testing.T) {
	query := `
		fragment ChatFields on Chat {
			message
			...Sender
		}

		fragment Sender on Chat {
			from { username }
		}

		query {
			chats { ...ChatFields }
		}
	`

	got, err := extractQueryMetadata(query, "")
	require.NoError(t, err)
	// chats, message, from, username
	assert.Equal(t, 4, got.fieldCount)
	assert.Equal(t, 3, got.selectionDepth)
}

func TestExtractQueryMetadata_CyclicFragments(t *testing.T) {
	query := `
		fragment A on User { username ...B }
		fragment B on User { id ...A }
		query { users { ...A } }
	`

	got, err := extractQueryMetadata(query, "")
	require.NoError(t, err)
	assert.Equal(t, 3, got.fieldCount)
}

func TestCountFieldsAndDepth_NilSelectionSet(t *testing.T) {
	fields, depth := countFieldsAndDepth(nil, map[string]*ast.FragmentDefinition{}, 1, map[string]bool{}, map[string]bool{})
	assert.Zero(t, fields)
	assert.Zero(t, depth)
}

func TestExtractGraphQLRequest(t *testing.T) {
	t.Run("json body is restored", func(t *testing.T) {
		body := `{"query":"{ chats { message } }","operationName":"List"}`
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		query, name := extractGraphQLRequest(req)
		assert.Equal(t, "{ chats { message } }", query)
		assert.Equal(t, "List", name)

		buf := new(strings.Builder)
		_, err := io.Copy(buf, req.Body)
		require.NoError(t, err)
		assert.Equal(t, body, buf.String())
	})

	t.Run("application/graphql body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{ users { username } }`))
		req.Header.Set("Content-Type", "application/graphql")

		query, name := extractGraphQLRequest(req)
		assert.Equal(t, "{ users { username } }", query)
		assert.Empty(t, name)
	})

	t.Run("get query string", func(t *testing.T) {
		params := url.Values{"query": {"{ all_chats { message } }"}, "operationName": {"All"}}
		req := httptest.NewRequest(http.MethodGet, "/graphql?"+params.Encode(), nil)

		query, name := extractGraphQLRequest(req)
		assert.Equal(t, "{ all_chats { message } }", query)
		assert.Equal(t, "All", name)
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`))
		query, name := extractGraphQLRequest(req)
		assert.Empty(t, query)
		assert.Empty(t, name)
	})
}

func TestRequestOperation_ParsesOnce(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"mutation { create_chat_message(from_user_id: 1, to_user_id: 2, message: \"x\") { errors } }"}`))
	req.Header.Set("Content-Type", "application/json")

	first, req := requestOperation(req)
	require.NotNil(t, first.metadata)
	assert.Equal(t, "mutation", first.operationType())

	second, _ := requestOperation(req)
	assert.Same(t, first, second)
}

func TestOperationType_Unknown(t *testing.T) {
	var op *operation
	assert.Equal(t, "unknown", op.operationType())
	assert.Equal(t, "unknown", (&operation{}).operationType())
}

func TestResponseHasGraphQLErrors(t *testing.T) {
	assert.True(t, responseHasGraphQLErrors([]byte(`{"errors":[{"message":"Unauthenticated"}]}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`{"data":{"chats":[]}}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`{"data":null,"errors":[]}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`<html>`)))
	assert.False(t, responseHasGraphQLErrors(nil))
}
