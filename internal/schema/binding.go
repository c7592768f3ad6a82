package schema

import (
	"fmt"
	"strings"
)

// MissingColumnsError is returned when a header lacks required columns.
type MissingColumnsError struct {
	Input   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Input, strings.Join(e.Columns, ", "))
}

// UnexpectedColumnsError is returned when a header has columns the input
// does not declare, or declares a column twice.
type UnexpectedColumnsError struct {
	Input   string
	Columns []string
}

func (e *UnexpectedColumnsError) Error() string {
	return fmt.Sprintf("%s: unexpected columns: %s", e.Input, strings.Join(e.Columns, ", "))
}

// Binding maps an Input's columns onto positions in a concrete CSV header.
type Binding struct {
	input    Input
	pos      map[string]int
	optional []Column
	optPos   []int
	width    int
}

// Bind resolves header against in. Every required column must appear, and
// every header column must be declared by in.
func Bind(in Input, header []string) (*Binding, error) {
	b := &Binding{
		input: in,
		pos:   make(map[string]int, len(header)),
		width: len(header),
	}

	var unexpected []string
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if _, _, ok := in.lookup(name); !ok {
			unexpected = append(unexpected, name)
			continue
		}
		if _, dup := b.pos[name]; dup {
			unexpected = append(unexpected, name+" (duplicate)")
			continue
		}
		b.pos[name] = i
	}

	var missing []string
	for _, c := range in.Required {
		if _, ok := b.pos[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Input: in.Name, Columns: missing}
	}
	if len(unexpected) > 0 {
		return nil, &UnexpectedColumnsError{Input: in.Name, Columns: unexpected}
	}

	// Optional columns keep header order.
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if col, required, _ := in.lookup(name); !required {
			b.optional = append(b.optional, col)
			b.optPos = append(b.optPos, i)
		}
	}

	return b, nil
}

// Input returns the bound input definition.
func (b *Binding) Input() Input { return b.input }

// Width is the number of fields each record must have.
func (b *Binding) Width() int { return b.width }

// Pos returns the header position of a required column. It panics for
// columns that are not required, which is a programming error.
func (b *Binding) Pos(name string) int {
	p, ok := b.pos[name]
	if !ok {
		panic(fmt.Sprintf("schema: column %q is not bound for %s", name, b.input.Name))
	}
	return p
}

// Optional returns the optional columns present in the header, in order.
func (b *Binding) Optional() []Column { return b.optional }

// OptionalPos returns the header positions matching Optional().
func (b *Binding) OptionalPos() []int { return b.optPos }
