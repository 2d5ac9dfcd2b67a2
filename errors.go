package sideload

import "fmt"

// Error codes for the sideload engine
const (
	SIDELOAD_MISSING_RELATION      = "SIDELOAD_MISSING_RELATION"
	SIDELOAD_MISCONFIGURED         = "SIDELOAD_MISCONFIGURED"
	SIDELOAD_FETCH_FAILED          = "SIDELOAD_FETCH_FAILED"
	SIDELOAD_DUPLICATE_RELATION    = "SIDELOAD_DUPLICATE_RELATION"
	SIDELOAD_INVALID_RELATION_NAME = "SIDELOAD_INVALID_RELATION_NAME"
)

// MissingSideloadError is returned when a requested relation name is not
// registered in the tree and the resolver's policy is MissingSideloadRaise.
type MissingSideloadError struct {
	Relation string
	Tree     string
}

func (e *MissingSideloadError) Error() string {
	return fmt.Sprintf("%s: relation %q is not registered in tree %q", SIDELOAD_MISSING_RELATION, e.Relation, e.Tree)
}

// MisconfiguredRelationError reports a programmer error in relation
// configuration. It is always fatal.
type MisconfiguredRelationError struct {
	Relation string
	Reason   string
}

func (e *MisconfiguredRelationError) Error() string {
	return fmt.Sprintf("%s: relation %q: %s", SIDELOAD_MISCONFIGURED, e.Relation, e.Reason)
}

// FetchError wraps a failure from the fetch callback or the Scope collaborator
// with enough context to identify the failing branch. The engine never retries.
type FetchError struct {
	Relation  string
	Namespace string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: relation %q (namespace %q): %v", SIDELOAD_FETCH_FAILED, e.Relation, e.Namespace, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
