package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// lengthCase renders max_length as a displayable character count: halved
// for UTF-16 types, -1 when length does not apply to the type.
const lengthCase = `CASE
		WHEN ty.name IN ('nvarchar', 'nchar') AND c.max_length > 0 THEN c.max_length / 2
		WHEN ty.name IN ('varchar', 'char', 'varbinary', 'binary') AND c.max_length > 0 THEN c.max_length
		ELSE -1
	END`

const precisionCase = `CASE WHEN ty.name IN ('decimal', 'numeric') THEN c.precision ELSE NULL END`
const scaleCase = `CASE WHEN ty.name IN ('decimal', 'numeric') AND c.scale > 0 THEN c.scale ELSE NULL END`

// discoveryQueries return (schema_name, object_name, type_tag) rows per
// object type. The %s slot receives an optional schema filter clause.
var discoveryQueries = map[string]string{
	"table": `
		SELECT s.name, t.name, 'table'
		FROM sys.tables t
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE t.is_ms_shipped = 0 %s
		ORDER BY s.name, t.name`,
	"view": `
		SELECT s.name, v.name, 'view'
		FROM sys.views v
		JOIN sys.schemas s ON v.schema_id = s.schema_id
		WHERE v.is_ms_shipped = 0 %s
		ORDER BY s.name, v.name`,
	"procedure": `
		SELECT s.name, p.name, 'procedure'
		FROM sys.procedures p
		JOIN sys.schemas s ON p.schema_id = s.schema_id
		WHERE p.is_ms_shipped = 0 %s
		ORDER BY s.name, p.name`,
	"function": `
		SELECT s.name, o.name, 'function'
		FROM sys.objects o
		JOIN sys.schemas s ON o.schema_id = s.schema_id
		WHERE o.type IN ('FN', 'IF', 'TF') AND o.is_ms_shipped = 0 %s
		ORDER BY s.name, o.name`,
}

// ObjectTypeTags lists the supported discovery type tags in processing order.
var ObjectTypeTags = []string{"table", "view", "procedure", "function"}

// schemaFilter builds an "AND s.name IN (...)" clause with named parameters
// for the given schema allow-list. An empty list yields no restriction.
func schemaFilter(schemas []string) (string, []any) {
	if len(schemas) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(schemas))
	args := make([]any, len(schemas))
	for i, s := range schemas {
		name := fmt.Sprintf("s%d", i)
		placeholders[i] = "@" + name
		args[i] = sql.Named(name, s)
	}
	return "AND s.name IN (" + strings.Join(placeholders, ", ") + ")", args
}

// DiscoverObjects returns the objects to document for the requested type
// tags, optionally restricted to a schema allow-list. Unsupported type tags
// are skipped with a warning. A nil or empty types slice means all four.
func (c *Client) DiscoverObjects(ctx context.Context, types []string, schemas []string) ([]ObjectRef, error) {
	defer c.record(time.Now())

	if len(types) == 0 {
		types = ObjectTypeTags
	}
	filter, args := schemaFilter(schemas)

	var objects []ObjectRef
	for _, tag := range types {
		query, ok := discoveryQueries[tag]
		if !ok {
			slog.Warn("unsupported object type", "type", tag)
			continue
		}

		rows, err := c.db.QueryContext(ctx, fmt.Sprintf(query, filter), args...)
		if err != nil {
			return nil, fmt.Errorf("discover %ss: %w", tag, err)
		}

		for rows.Next() {
			var ref ObjectRef
			if err := rows.Scan(&ref.Schema, &ref.Name, &ref.Type); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s row: %w", tag, err)
			}
			objects = append(objects, ref)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate %s rows: %w", tag, err)
		}
		rows.Close()
	}

	return objects, nil
}

var columnsQuery = fmt.Sprintf(`
	SELECT
		c.name,
		ty.name,
		%s,
		%s,
		%s,
		c.is_nullable,
		CAST(ep.value AS nvarchar(4000))
	FROM sys.columns c
	JOIN sys.types ty ON c.user_type_id = ty.user_type_id
	JOIN sys.objects o ON c.object_id = o.object_id
	JOIN sys.schemas s ON o.schema_id = s.schema_id
	LEFT JOIN sys.extended_properties ep
		ON ep.major_id = c.object_id AND ep.minor_id = c.column_id
		AND ep.class = 1 AND ep.name = 'MS_Description'
	WHERE s.name = @schema AND o.name = @name
	ORDER BY c.column_id`, lengthCase, precisionCase, scaleCase)

// TableColumns returns column metadata for a table.
func (c *Client) TableColumns(ctx context.Context, schema, name string) ([]Column, error) {
	return c.columns(ctx, schema, name)
}

// ViewColumns returns column metadata for a view. Views and tables share
// the sys.columns catalog, so the query is identical.
func (c *Client) ViewColumns(ctx context.Context, schema, name string) ([]Column, error) {
	return c.columns(ctx, schema, name)
}

func (c *Client) columns(ctx context.Context, schema, name string) ([]Column, error) {
	defer c.record(time.Now())

	rows, err := c.db.QueryContext(ctx, columnsQuery,
		sql.Named("schema", schema), sql.Named("name", name))
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", schema, name, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			col              Column
			precision, scale sql.NullInt64
			description      sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.Type.DataType, &col.Type.MaxLength,
			&precision, &scale, &col.Nullable, &description); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.Type.Precision = nullableInt(precision)
		col.Type.Scale = nullableInt(scale)
		col.Description = description.String
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

const indexesQuery = `
	SELECT
		i.name,
		i.type_desc,
		i.is_unique,
		STRING_AGG(col.name, ', ') WITHIN GROUP (ORDER BY ic.key_ordinal)
	FROM sys.indexes i
	JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
	JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
	JOIN sys.objects o ON i.object_id = o.object_id
	JOIN sys.schemas s ON o.schema_id = s.schema_id
	WHERE s.name = @schema AND o.name = @name AND i.name IS NOT NULL
	GROUP BY i.name, i.type_desc, i.is_unique
	ORDER BY i.name`

// TableIndexes returns index metadata for a table.
func (c *Client) TableIndexes(ctx context.Context, schema, name string) ([]Index, error) {
	defer c.record(time.Now())

	rows, err := c.db.QueryContext(ctx, indexesQuery,
		sql.Named("schema", schema), sql.Named("name", name))
	if err != nil {
		return nil, fmt.Errorf("query indexes for %s.%s: %w", schema, name, err)
	}
	defer rows.Close()

	var indexes []Index
	for rows.Next() {
		var idx Index
		if err := rows.Scan(&idx.Name, &idx.TypeDesc, &idx.Unique, &idx.Columns); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

const foreignKeysQuery = `
	SELECT
		fk.name,
		rs.name,
		rt.name,
		STRING_AGG(pc.name, ', ') WITHIN GROUP (ORDER BY fkc.constraint_column_id),
		STRING_AGG(rc.name, ', ') WITHIN GROUP (ORDER BY fkc.constraint_column_id)
	FROM sys.foreign_keys fk
	JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	JOIN sys.columns pc ON fkc.parent_object_id = pc.object_id AND fkc.parent_column_id = pc.column_id
	JOIN sys.columns rc ON fkc.referenced_object_id = rc.object_id AND fkc.referenced_column_id = rc.column_id
	JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
	JOIN sys.schemas rs ON rt.schema_id = rs.schema_id
	JOIN sys.objects o ON fk.parent_object_id = o.object_id
	JOIN sys.schemas s ON o.schema_id = s.schema_id
	WHERE s.name = @schema AND o.name = @name
	GROUP BY fk.name, rs.name, rt.name
	ORDER BY fk.name`

// TableForeignKeys returns foreign key metadata for a table.
func (c *Client) TableForeignKeys(ctx context.Context, schema, name string) ([]ForeignKey, error) {
	defer c.record(time.Now())

	rows, err := c.db.QueryContext(ctx, foreignKeysQuery,
		sql.Named("schema", schema), sql.Named("name", name))
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s.%s: %w", schema, name, err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Name, &fk.RefSchema, &fk.RefTable, &fk.Columns, &fk.RefColumns); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

var paramsQuery = fmt.Sprintf(`
	SELECT
		c.name,
		ty.name,
		%s,
		%s,
		%s,
		c.is_output
	FROM sys.parameters c
	JOIN sys.types ty ON c.user_type_id = ty.user_type_id
	JOIN sys.objects o ON c.object_id = o.object_id
	JOIN sys.schemas s ON o.schema_id = s.schema_id
	WHERE s.name = @schema AND o.name = @name AND c.parameter_id > 0
	ORDER BY c.parameter_id`, lengthCase, precisionCase, scaleCase)

// ProcedureParams returns parameter metadata for a stored procedure.
func (c *Client) ProcedureParams(ctx context.Context, schema, name string) ([]Param, error) {
	return c.params(ctx, schema, name)
}

// FunctionParams returns parameter metadata for a function.
func (c *Client) FunctionParams(ctx context.Context, schema, name string) ([]Param, error) {
	return c.params(ctx, schema, name)
}

func (c *Client) params(ctx context.Context, schema, name string) ([]Param, error) {
	defer c.record(time.Now())

	rows, err := c.db.QueryContext(ctx, paramsQuery,
		sql.Named("schema", schema), sql.Named("name", name))
	if err != nil {
		return nil, fmt.Errorf("query parameters for %s.%s: %w", schema, name, err)
	}
	defer rows.Close()

	var params []Param
	for rows.Next() {
		var (
			p                Param
			precision, scale sql.NullInt64
		)
		if err := rows.Scan(&p.Name, &p.Type.DataType, &p.Type.MaxLength,
			&precision, &scale, &p.Output); err != nil {
			return nil, fmt.Errorf("scan parameter row: %w", err)
		}
		p.Type.Precision = nullableInt(precision)
		p.Type.Scale = nullableInt(scale)
		params = append(params, p)
	}
	return params, rows.Err()
}

// The return value of a scalar function is parameter_id 0 in sys.parameters.
var returnTypeQuery = fmt.Sprintf(`
	SELECT
		ty.name,
		%s,
		%s,
		%s
	FROM sys.parameters c
	JOIN sys.types ty ON c.user_type_id = ty.user_type_id
	JOIN sys.objects o ON c.object_id = o.object_id
	JOIN sys.schemas s ON o.schema_id = s.schema_id
	WHERE s.name = @schema AND o.name = @name AND c.parameter_id = 0`,
	lengthCase, precisionCase, scaleCase)

// FunctionReturnType returns a function's return type, or nil when the
// function has no scalar return value row.
func (c *Client) FunctionReturnType(ctx context.Context, schema, name string) (*ReturnType, error) {
	defer c.record(time.Now())

	var (
		rt               ReturnType
		precision, scale sql.NullInt64
	)
	err := c.db.QueryRowContext(ctx, returnTypeQuery,
		sql.Named("schema", schema), sql.Named("name", name)).
		Scan(&rt.Type.DataType, &rt.Type.MaxLength, &precision, &scale)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query return type for %s.%s: %w", schema, name, err)
	}
	rt.Type.Precision = nullableInt(precision)
	rt.Type.Scale = nullableInt(scale)
	return &rt, nil
}

const definitionQuery = `
	SELECT m.definition
	FROM sys.sql_modules m
	JOIN sys.objects o ON m.object_id = o.object_id
	JOIN sys.schemas s ON o.schema_id = s.schema_id
	WHERE s.name = @schema AND o.name = @name`

// ObjectDefinition returns the source text of a view, procedure or
// function. The second return value reports whether a definition exists.
func (c *Client) ObjectDefinition(ctx context.Context, schema, name string) (string, bool, error) {
	defer c.record(time.Now())

	var definition sql.NullString
	err := c.db.QueryRowContext(ctx, definitionQuery,
		sql.Named("schema", schema), sql.Named("name", name)).Scan(&definition)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query definition for %s.%s: %w", schema, name, err)
	}
	if !definition.Valid || definition.String == "" {
		return "", false, nil
	}
	return definition.String, true, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
