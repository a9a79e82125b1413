package flakeedit

import (
	"errors"
	"fmt"

	"github.com/kevinwang15/flakeedit/nix"
)

var (
	// ErrPositionNotFound is returned when a line/column does not exist in a buffer,
	// usually because the position was computed against another version of it.
	ErrPositionNotFound = errors.New("position not found")
	// ErrUnsupportedConstruct is returned for inherit bindings and interpolated names or values.
	ErrUnsupportedConstruct = errors.New("unsupported construct")
	// ErrMultiPartValue is returned when a string value is not a single literal.
	ErrMultiPartValue = errors.New("string value has more than one part")
	// ErrUnsupportedExpression is returned when a path ends at something other than a string,
	// or continues through something other than an attribute set.
	ErrUnsupportedExpression = errors.New("unsupported expression kind")
	// ErrMalformedReference is returned for references that are neither URLs nor org/repo[/version].
	ErrMalformedReference = errors.New("malformed reference")
	// ErrAmbiguousName is returned when an input name cannot be inferred from a reference.
	ErrAmbiguousName = errors.New("cannot infer input name")
	// ErrRegistryLookup wraps failures talking to the registry.
	ErrRegistryLookup = errors.New("registry lookup failed")
	// ErrUnsupportedScheme marks inputs whose URL scheme has no conversion rule.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrUnsupportedBranch marks inputs pinned to a branch with no registry equivalent.
	ErrUnsupportedBranch = errors.New("unsupported branch")
	// ErrNoAnchor is returned when there is neither a match nor any binding to insert before.
	ErrNoAnchor = errors.New("no binding to insert before")
	// ErrInputRemoval is returned when a patch tries to remove an input.
	ErrInputRemoval = errors.New("removing inputs is not supported")
	// ErrShadowedBinding marks a binding that an earlier declaration of the same set hides.
	ErrShadowedBinding = errors.New("binding is shadowed by an earlier declaration")
)

// PositionError ties one of the sentinels above to the source position that caused it.
type PositionError struct {
	Pos  nix.Position
	Kind string // expression kind, when relevant
	Err  error
}

func (e *PositionError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%v: %s (at %v)", e.Err, e.Kind, e.Pos)
	}
	return fmt.Sprintf("%v (at %v)", e.Err, e.Pos)
}

func (e *PositionError) Unwrap() error { return e.Err }

func positionError(err error, pos nix.Position) *PositionError {
	return &PositionError{Pos: pos, Err: err}
}
