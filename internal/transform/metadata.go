package transform

import (
	"fmt"

	"github.com/johndauphine/plasticc-ingest/internal/schema"
)

// Metadata is one row of the output metadata table.
type Metadata struct {
	ObjectID        string
	Class           int64
	DDF             bool
	HostSpecz       float64
	HostPhotoz      float64
	HostPhotozError float64
	Redshift        float64
	Galactic        bool
	Extra           []any
}

// DuplicateObjectError is returned when two metadata rows share an object id.
type DuplicateObjectError struct {
	ObjectID string
	Lines    [2]int64
}

func (e *DuplicateObjectError) Error() string {
	return fmt.Sprintf("duplicate object_id %s on metadata lines %d and %d", e.ObjectID, e.Lines[0], e.Lines[1])
}

// MetadataMapper maps metadata in successive chunks of one file, checking
// object_id uniqueness across all of them.
type MetadataMapper struct {
	seen map[string]int64
}

// NewMetadataMapper returns a mapper with no ids seen.
func NewMetadataMapper() *MetadataMapper {
	return &MetadataMapper{seen: make(map[string]int64)}
}

// Map renames and reshapes raw metadata rows. target and distmod are
// dropped, ddf becomes a boolean, galactic is derived from a host photo-z of
// exactly zero, and object_id is rewritten and must be unique.
func (m *MetadataMapper) Map(raw []RawMetadata) ([]Metadata, error) {
	out := make([]Metadata, len(raw))
	for i, r := range raw {
		id, err := schema.FormatObjectID(r.ObjectID)
		if err != nil {
			return nil, fmt.Errorf("metadata line %d: %w", r.Line, err)
		}
		if prev, dup := m.seen[id]; dup {
			return nil, &DuplicateObjectError{ObjectID: id, Lines: [2]int64{prev, r.Line}}
		}
		m.seen[id] = r.Line

		out[i] = Metadata{
			ObjectID:        id,
			Class:           r.TrueTarget,
			DDF:             r.DDFBool != 0,
			HostSpecz:       r.HostgalSpecz,
			HostPhotoz:      r.HostgalPhotoz,
			HostPhotozError: r.HostgalPhotozErr,
			Redshift:        r.TrueZ,
			Galactic:        r.HostgalPhotoz == 0.0,
			Extra:           r.Extra,
		}
	}
	return out, nil
}

// MapMetadata maps a complete metadata table in one call.
func MapMetadata(raw []RawMetadata) ([]Metadata, error) {
	return NewMetadataMapper().Map(raw)
}

// Values returns the row in schema.MetadataTable column order.
func (m Metadata) Values() []any {
	row := make([]any, 0, 8+len(m.Extra))
	row = append(row,
		m.ObjectID,
		m.Class,
		m.DDF,
		nullFloat(m.HostSpecz),
		nullFloat(m.HostPhotoz),
		nullFloat(m.HostPhotozError),
		nullFloat(m.Redshift),
		m.Galactic,
	)
	for _, v := range m.Extra {
		if f, ok := v.(float64); ok {
			row = append(row, nullFloat(f))
			continue
		}
		row = append(row, v)
	}
	return row
}

// MetadataRows converts rows for a store write.
func MetadataRows(ms []Metadata) [][]any {
	rows := make([][]any, len(ms))
	for i, m := range ms {
		rows[i] = m.Values()
	}
	return rows
}
