// Package docs orchestrates database object documentation: discovery,
// per-object rendering, optional LLM enrichment and index storage.
package docs

import (
	"errors"
	"fmt"
)

// ObjectType is the closed set of documentable database object kinds.
type ObjectType int

const (
	TypeTable ObjectType = iota
	TypeView
	TypeProcedure
	TypeFunction
)

var objectTypeTags = [...]string{"table", "view", "procedure", "function"}

func (t ObjectType) String() string {
	if t < 0 || int(t) >= len(objectTypeTags) {
		return fmt.Sprintf("ObjectType(%d)", int(t))
	}
	return objectTypeTags[t]
}

// AllObjectTypes returns every documentable type in processing order.
func AllObjectTypes() []ObjectType {
	return []ObjectType{TypeTable, TypeView, TypeProcedure, TypeFunction}
}

// ParseObjectType maps a type tag to its ObjectType. The boolean is false
// for tags outside the closed set.
func ParseObjectType(tag string) (ObjectType, bool) {
	for i, t := range objectTypeTags {
		if t == tag {
			return ObjectType(i), true
		}
	}
	return 0, false
}

var (
	// ErrDefinitionNotFound is returned when an object's source text is
	// absent from sys.sql_modules. Fatal for the object, not the batch.
	ErrDefinitionNotFound = errors.New("object definition not found")

	// ErrMissingReturnType is returned when a function has no return
	// type row in sys.parameters.
	ErrMissingReturnType = errors.New("function return type not found")

	// ErrBatchInProgress is returned when a documentation batch is
	// requested while another batch is still running.
	ErrBatchInProgress = errors.New("documentation batch already in progress")
)
