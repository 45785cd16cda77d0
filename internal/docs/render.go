package docs

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbscribe/dbscribe/internal/mssql"
)

// analysisMarker separates rendered metadata from the enrichment
// narrative. generateDocumentationSummary truncates stored content at
// this exact string, so it must appear verbatim and at most once.
const analysisMarker = "\n\nAnalysis:\n"

// objectDocumenter renders one database object into documentation text
// plus search metadata. Implemented once per object type; variants are
// selected through documenterFor, so an unhandled type is a missing
// switch arm rather than a runtime lookup miss.
type objectDocumenter interface {
	render(ctx context.Context, schema, name string) (string, map[string]any, error)
}

func documenterFor(t ObjectType, db Database) objectDocumenter {
	switch t {
	case TypeTable:
		return tableDocumenter{db: db}
	case TypeView:
		return viewDocumenter{db: db}
	case TypeProcedure:
		return procedureDocumenter{db: db}
	case TypeFunction:
		return functionDocumenter{db: db}
	}
	panic("unhandled object type " + t.String())
}

func writeColumns(b *strings.Builder, columns []mssql.Column) {
	for _, col := range columns {
		fmt.Fprintf(b, "\n%s (%s)", col.Name, mssql.FormatType(col.Type))
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if col.Description != "" {
			fmt.Fprintf(b, "\n  Description: %s", col.Description)
		}
	}
}

func writeParams(b *strings.Builder, params []mssql.Param) {
	for _, p := range params {
		fmt.Fprintf(b, "\n%s (%s)", p.Name, mssql.FormatType(p.Type))
		if p.Output {
			b.WriteString(" OUTPUT")
		}
		if p.Description != "" {
			fmt.Fprintf(b, "\n  Description: %s", p.Description)
		}
	}
}

type tableDocumenter struct {
	db Database
}

func (t tableDocumenter) render(ctx context.Context, schema, name string) (string, map[string]any, error) {
	columns, err := t.db.TableColumns(ctx, schema, name)
	if err != nil {
		return "", nil, fmt.Errorf("table columns: %w", err)
	}
	indexes, err := t.db.TableIndexes(ctx, schema, name)
	if err != nil {
		return "", nil, fmt.Errorf("table indexes: %w", err)
	}
	foreignKeys, err := t.db.TableForeignKeys(ctx, schema, name)
	if err != nil {
		return "", nil, fmt.Errorf("table foreign keys: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s.%s\n\nColumns:\n", schema, name)
	writeColumns(&b, columns)

	if len(indexes) > 0 {
		b.WriteString("\n\nIndexes:\n")
		for _, idx := range indexes {
			fmt.Fprintf(&b, "\n%s (%s)", idx.Name, idx.TypeDesc)
			if idx.Unique {
				b.WriteString(" UNIQUE")
			}
			fmt.Fprintf(&b, "\n  Columns: %s", idx.Columns)
		}
	}

	if len(foreignKeys) > 0 {
		b.WriteString("\n\nForeign Keys:\n")
		for _, fk := range foreignKeys {
			fmt.Fprintf(&b, "\n%s", fk.Name)
			fmt.Fprintf(&b, "\n  References: %s.%s", fk.RefSchema, fk.RefTable)
			fmt.Fprintf(&b, "\n  Columns: %s -> %s", fk.Columns, fk.RefColumns)
		}
	}

	metadata := map[string]any{
		"column_count":     len(columns),
		"has_indexes":      len(indexes) > 0,
		"has_foreign_keys": len(foreignKeys) > 0,
	}
	return b.String(), metadata, nil
}

type viewDocumenter struct {
	db Database
}

func (v viewDocumenter) render(ctx context.Context, schema, name string) (string, map[string]any, error) {
	columns, err := v.db.ViewColumns(ctx, schema, name)
	if err != nil {
		return "", nil, fmt.Errorf("view columns: %w", err)
	}
	definition, err := fetchDefinition(ctx, v.db, schema, name)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "View: %s.%s\n\nColumns:\n", schema, name)
	writeColumns(&b, columns)
	fmt.Fprintf(&b, "\n\nDefinition:\n%s", definition)

	metadata := map[string]any{
		"column_count":      len(columns),
		"definition_length": len(definition),
	}
	return b.String(), metadata, nil
}

type procedureDocumenter struct {
	db Database
}

func (p procedureDocumenter) render(ctx context.Context, schema, name string) (string, map[string]any, error) {
	params, err := p.db.ProcedureParams(ctx, schema, name)
	if err != nil {
		return "", nil, fmt.Errorf("procedure params: %w", err)
	}
	definition, err := fetchDefinition(ctx, p.db, schema, name)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stored Procedure: %s.%s\n", schema, name)
	if len(params) > 0 {
		b.WriteString("\nParameters:\n")
		writeParams(&b, params)
	}
	fmt.Fprintf(&b, "\n\nDefinition:\n%s", definition)

	metadata := map[string]any{
		"parameter_count":   len(params),
		"definition_length": len(definition),
	}
	return b.String(), metadata, nil
}

type functionDocumenter struct {
	db Database
}

func (f functionDocumenter) render(ctx context.Context, schema, name string) (string, map[string]any, error) {
	params, err := f.db.FunctionParams(ctx, schema, name)
	if err != nil {
		return "", nil, fmt.Errorf("function params: %w", err)
	}
	returnType, err := f.db.FunctionReturnType(ctx, schema, name)
	if err != nil {
		return "", nil, fmt.Errorf("function return type: %w", err)
	}
	if returnType == nil {
		return "", nil, fmt.Errorf("function %s.%s: %w", schema, name, ErrMissingReturnType)
	}
	definition, err := fetchDefinition(ctx, f.db, schema, name)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Function: %s.%s\n", schema, name)
	fmt.Fprintf(&b, "\nReturns: %s", mssql.FormatType(returnType.Type))
	if len(params) > 0 {
		b.WriteString("\n\nParameters:\n")
		writeParams(&b, params)
	}
	fmt.Fprintf(&b, "\n\nDefinition:\n%s", definition)

	metadata := map[string]any{
		"parameter_count":   len(params),
		"definition_length": len(definition),
		"return_type":       returnType.Type.DataType,
	}
	return b.String(), metadata, nil
}

// fetchDefinition fetches an object's source text, mapping an absent or
// empty definition to ErrDefinitionNotFound.
func fetchDefinition(ctx context.Context, db Database, schema, name string) (string, error) {
	definition, ok, err := db.ObjectDefinition(ctx, schema, name)
	if err != nil {
		return "", fmt.Errorf("object definition: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%s.%s: %w", schema, name, ErrDefinitionNotFound)
	}
	return definition, nil
}
