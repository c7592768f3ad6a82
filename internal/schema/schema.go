// Package schema defines the typed table layouts read from the PLAsTiCC
// archive and written to the output containers.
package schema

import "fmt"

// Type is the logical type of a column.
type Type int

const (
	TypeInt Type = iota
	TypeFloat
	TypeBool
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Column is a named, typed column.
type Column struct {
	Name string
	Type Type
}

// Table describes an output table.
type Table struct {
	Name    string
	Columns []Column

	// Key is the unique row key column, empty when rows are not unique.
	Key string

	// Indexed lists non-unique columns indexed once loading completes.
	Indexed []string
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Input describes the columns of a raw CSV file.
type Input struct {
	Name string

	// Required columns must be present in the header.
	Required []Column

	// Optional columns are carried through unchanged when present.
	Optional []Column
}

// lookup returns the declared column with the given name.
func (in Input) lookup(name string) (Column, bool, bool) {
	for _, c := range in.Required {
		if c.Name == name {
			return c, true, true
		}
	}
	for _, c := range in.Optional {
		if c.Name == name {
			return c, false, true
		}
	}
	return Column{}, false, false
}
