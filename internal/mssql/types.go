package mssql

import "fmt"

// ObjectRef identifies a database object discovered for documentation.
type ObjectRef struct {
	Schema string
	Name   string
	Type   string
}

// TypeInfo describes the SQL type of a column, parameter or return value.
// MaxLength of -1 means length is not applicable for the type; Precision
// and Scale are nil unless the type carries them.
type TypeInfo struct {
	DataType  string
	MaxLength int
	Precision *int
	Scale     *int
}

// FormatType renders a TypeInfo as a canonical type string, e.g.
// VARCHAR(50), DECIMAL(10,2) or INT. MaxLength takes precedence over
// precision/scale; scale is only rendered alongside precision.
func FormatType(t TypeInfo) string {
	if t.MaxLength != -1 {
		return fmt.Sprintf("%s(%d)", t.DataType, t.MaxLength)
	}
	if t.Precision != nil {
		if t.Scale != nil {
			return fmt.Sprintf("%s(%d,%d)", t.DataType, *t.Precision, *t.Scale)
		}
		return fmt.Sprintf("%s(%d)", t.DataType, *t.Precision)
	}
	return t.DataType
}

// Column describes a table or view column.
type Column struct {
	Name        string
	Type        TypeInfo
	Nullable    bool
	Description string
}

// Index describes a table index with its key columns.
type Index struct {
	Name     string
	TypeDesc string
	Unique   bool
	Columns  string
}

// ForeignKey describes a foreign key constraint.
type ForeignKey struct {
	Name       string
	RefSchema  string
	RefTable   string
	Columns    string
	RefColumns string
}

// Param describes a procedure or function parameter.
type Param struct {
	Name        string
	Type        TypeInfo
	Output      bool
	Description string
}

// ReturnType describes a scalar function's return value.
type ReturnType struct {
	Type TypeInfo
}
