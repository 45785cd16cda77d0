package mssql

import "testing"

func intPtr(v int) *int { return &v }

func TestFormatType(t *testing.T) {
	tests := []struct {
		name string
		info TypeInfo
		want string
	}{
		{"varchar with length", TypeInfo{DataType: "VARCHAR", MaxLength: 50}, "VARCHAR(50)"},
		{"nvarchar max", TypeInfo{DataType: "NVARCHAR", MaxLength: 0}, "NVARCHAR(0)"},
		{"decimal with precision and scale", TypeInfo{DataType: "DECIMAL", MaxLength: -1, Precision: intPtr(10), Scale: intPtr(2)}, "DECIMAL(10,2)"},
		{"numeric precision only", TypeInfo{DataType: "NUMERIC", MaxLength: -1, Precision: intPtr(18)}, "NUMERIC(18)"},
		{"bare int", TypeInfo{DataType: "INT", MaxLength: -1}, "INT"},
		{"bare datetime", TypeInfo{DataType: "DATETIME", MaxLength: -1}, "DATETIME"},
		// MaxLength wins even when precision is also present
		{"length takes precedence", TypeInfo{DataType: "VARBINARY", MaxLength: 16, Precision: intPtr(5)}, "VARBINARY(16)"},
		// scale without precision is never rendered
		{"scale without precision", TypeInfo{DataType: "FLOAT", MaxLength: -1, Scale: intPtr(3)}, "FLOAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatType(tt.info)
			if got != tt.want {
				t.Errorf("FormatType(%+v) = %q, want %q", tt.info, got, tt.want)
			}
		})
	}
}
