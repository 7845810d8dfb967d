package loader

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes, shared with the CLI's JSON output.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Definition errors
	ErrCodeSubgraphKind = "E101" // Missing or unknown subgraph kind
	ErrCodeNodeKind     = "E102" // Missing or unknown node kind
	ErrCodeUnknownRef   = "E103" // Reference to an undefined subgraph or node
	ErrCodeAmount       = "E104" // Missing or non-numeric edge amount
	ErrCodeInvalidID    = "E105" // Non-positive or duplicate id
)

// LoadError represents an error that occurred while loading definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DefinitionError is a problem with one field of a definition.
type DefinitionError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *DefinitionError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// fieldCode maps a definition field to its error code.
func fieldCode(field string) string {
	switch field {
	case "subgraph.kind":
		return ErrCodeSubgraphKind
	case "node.kind":
		return ErrCodeNodeKind
	case "node.subgraph", "edge.from", "edge.to":
		return ErrCodeUnknownRef
	case "edge.amount":
		return ErrCodeAmount
	case "id":
		return ErrCodeInvalidID
	default:
		return ErrCodeGeneric
	}
}

// toLoadError attaches a code to a definition error.
func toLoadError(err error) *LoadError {
	if de, ok := err.(*DefinitionError); ok {
		return &LoadError{Code: fieldCode(de.Field), Message: de.Message, Pos: de.Pos}
	}
	if le, ok := err.(*LoadError); ok {
		return le
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(field string, err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &DefinitionError{
			Field:   field,
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return &DefinitionError{Field: field, Message: err.Error()}
}
