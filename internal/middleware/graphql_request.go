package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

type graphQLRequest struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName"`
}

type queryMetadata struct {
	operationType  string
	fieldCount     int
	selectionDepth int
	variableCount  int
}

// operation is the parsed shape of one GraphQL request, computed once and
// shared by the metrics and tracing middleware.
type operation struct {
	name     string
	query    string
	metadata *queryMetadata
}

func (o *operation) operationType() string {
	if o == nil || o.metadata == nil || strings.TrimSpace(o.metadata.operationType) == "" {
		return "unknown"
	}
	return o.metadata.operationType
}

type operationKey struct{}

// requestOperation returns the request's operation, parsing the body on first
// use and caching the result on the returned request's context.
func requestOperation(r *http.Request) (*operation, *http.Request) {
	if op, ok := r.Context().Value(operationKey{}).(*operation); ok {
		return op, r
	}

	query, name := extractGraphQLRequest(r)
	op := &operation{name: name, query: query}
	if metadata, err := extractQueryMetadata(query, name); err == nil {
		op.metadata = metadata
	}
	return op, r.WithContext(context.WithValue(r.Context(), operationKey{}, op))
}

func extractGraphQLRequest(r *http.Request) (string, string) {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("query"), r.URL.Query().Get("operationName")
	}

	if r.Method != http.MethodPost || r.Body == nil {
		return "", ""
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/graphql") {
		return string(body), ""
	}

	var payload graphQLRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}

	return payload.Query, payload.OperationName
}

func extractQueryMetadata(query, operationName string) (*queryMetadata, error) {
	if query == "" {
		return nil, nil
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "graphql",
		}),
	})
	if err != nil {
		return nil, err
	}

	fragments := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok {
			fragments[frag.Name.Value] = frag
		}
	}

	var targetOp *ast.OperationDefinition
	var first *ast.OperationDefinition
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if first == nil {
			first = op
		}
		if operationName != "" && op.Name != nil && op.Name.Value == operationName {
			targetOp = op
			break
		}
	}

	// An unnamed request executes its only (first) operation.
	if targetOp == nil && operationName == "" && first != nil {
		targetOp = first
	}

	if targetOp == nil {
		return nil, nil
	}

	metadata := &queryMetadata{
		operationType: string(targetOp.Operation),
		variableCount: len(targetOp.VariableDefinitions),
	}

	if targetOp.SelectionSet != nil {
		fields, depth := countFieldsAndDepth(targetOp.SelectionSet, fragments, 1, map[string]bool{}, map[string]bool{})
		metadata.fieldCount = fields
		metadata.selectionDepth = depth
	}

	return metadata, nil
}

func countFieldsAndDepth(selectionSet *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, currentDepth int, visited, inFlight map[string]bool) (fields, maxDepth int) {
	if selectionSet == nil {
		return 0, currentDepth - 1
	}

	maxDepth = currentDepth

	for _, selection := range selectionSet.Selections {
		var nested *ast.SelectionSet
		depth := currentDepth

		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			nested = sel.SelectionSet
			depth = currentDepth + 1
		case *ast.InlineFragment:
			nested = sel.SelectionSet
		case *ast.FragmentSpread:
			fragName := sel.Name.Value
			// Each fragment is expanded at most once; cycles are cut.
			if inFlight[fragName] || visited[fragName] {
				continue
			}
			inFlight[fragName] = true
			visited[fragName] = true
			if frag, ok := fragments[fragName]; ok && frag.SelectionSet != nil {
				nestedFields, nestedDepth := countFieldsAndDepth(frag.SelectionSet, fragments, currentDepth, visited, inFlight)
				fields += nestedFields
				if nestedDepth > maxDepth {
					maxDepth = nestedDepth
				}
			}
			delete(inFlight, fragName)
			continue
		}

		if nested != nil {
			nestedFields, nestedDepth := countFieldsAndDepth(nested, fragments, depth, visited, inFlight)
			fields += nestedFields
			if nestedDepth > maxDepth {
				maxDepth = nestedDepth
			}
		}
	}

	return fields, maxDepth
}
