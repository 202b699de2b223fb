package planner

import "fmt"

// FilterValidationError rejects a filter argument that is not in the entity's whitelist.
// The whole request is refused; no partial filter is applied.
type FilterValidationError struct {
	Key    string
	Reason string
}

func (e *FilterValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid filter %q", e.Key)
	}
	return fmt.Sprintf("invalid filter %q: %s", e.Key, e.Reason)
}

func (e *FilterValidationError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":   "BAD_USER_INPUT",
		"filter": e.Key,
	}
}

// SortValidationError is returned by ParseSortStrict for a sort field that is not a column.
type SortValidationError struct {
	Spec   string
	Reason string
}

func (e *SortValidationError) Error() string {
	return fmt.Sprintf("invalid sort %q: %s", e.Spec, e.Reason)
}

func (e *SortValidationError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code": "BAD_USER_INPUT",
		"sort": e.Spec,
	}
}
