// Package transform maps raw PLAsTiCC records onto the output schema.
//
// Decoding turns CSV records into typed raw rows; MapMetadata and MapObservations
// apply the renames, coercions and derived columns without any I/O.
package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/johndauphine/plasticc-ingest/internal/schema"
	"github.com/johndauphine/plasticc-ingest/internal/source"
)

// DecodeError reports a value that could not be parsed.
type DecodeError struct {
	Input  string
	Line   int64
	Column string
	Value  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s line %d: column %s: cannot parse %q: %v", e.Input, e.Line, e.Column, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RawMetadata is one row of a *_metadata.csv file.
type RawMetadata struct {
	ObjectID         int64
	DDFBool          int64
	HostgalSpecz     float64
	HostgalPhotoz    float64
	HostgalPhotozErr float64
	Distmod          float64
	Target           int64
	TrueTarget       int64
	TrueZ            float64

	// Line is the file line the row was read from.
	Line int64

	// Extra holds the optional columns present in the file, typed per
	// schema.Binding.Optional and in the same order.
	Extra []any
}

// RawObservation is one row of a light curve file.
type RawObservation struct {
	ObjectID     int64
	MJD          float64
	Passband     int64
	Flux         float64
	FluxErr      float64
	DetectedBool int64
	Line         int64
}

type decoder struct {
	b    *schema.Binding
	rec  []string
	line int64
	err  error
}

func (d *decoder) field(name string) string {
	return d.rec[d.b.Pos(name)]
}

func (d *decoder) fail(column, value string, err error) {
	if d.err == nil {
		d.err = &DecodeError{Input: d.b.Input().Name, Line: d.line, Column: column, Value: value, Err: err}
	}
}

func (d *decoder) intField(name string) int64 {
	raw := d.field(name)
	v, err := parseInt(raw)
	if err != nil {
		d.fail(name, raw, err)
	}
	return v
}

func (d *decoder) floatField(name string) float64 {
	raw := d.field(name)
	v, err := parseFloat(raw)
	if err != nil {
		d.fail(name, raw, err)
	}
	return v
}

// parseInt accepts integers and boolean spellings ("True", "false").
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return v, nil
	}
	if b, berr := strconv.ParseBool(s); berr == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, err
}

// parseFloat treats an empty field as NaN, the way missing values appear in
// the archive.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func (d *decoder) extras() []any {
	opt := d.b.Optional()
	if len(opt) == 0 {
		return nil
	}
	out := make([]any, len(opt))
	for i, pos := range d.b.OptionalPos() {
		raw := d.rec[pos]
		col := opt[i]
		switch col.Type {
		case schema.TypeInt:
			if strings.TrimSpace(raw) == "" {
				out[i] = nil
				continue
			}
			v, err := parseInt(raw)
			if err != nil {
				d.fail(col.Name, raw, err)
			}
			out[i] = v
		case schema.TypeFloat:
			v, err := parseFloat(raw)
			if err != nil {
				d.fail(col.Name, raw, err)
			}
			out[i] = v
		case schema.TypeBool:
			v, err := parseInt(raw)
			if err != nil {
				d.fail(col.Name, raw, err)
			}
			out[i] = v != 0
		default:
			out[i] = raw
		}
	}
	return out
}

// DecodeMetadata parses a batch of metadata records.
func DecodeMetadata(batch *source.Batch) ([]RawMetadata, error) {
	d := &decoder{b: batch.Binding}
	rows := make([]RawMetadata, len(batch.Records))
	for i, rec := range batch.Records {
		d.rec = rec
		d.line = batch.FirstLine + int64(i)
		rows[i] = RawMetadata{
			ObjectID:         d.intField(schema.ColObjectID),
			DDFBool:          d.intField(schema.ColDDFBool),
			HostgalSpecz:     d.floatField(schema.ColHostgalSpecz),
			HostgalPhotoz:    d.floatField(schema.ColHostgalPhotoz),
			HostgalPhotozErr: d.floatField(schema.ColHostgalPhotozErr),
			Distmod:          d.floatField(schema.ColDistmod),
			TrueTarget:       d.intField(schema.ColTrueTarget),
			TrueZ:            d.floatField(schema.ColTrueZ),
			Line:             d.line,
			Target:           lenientInt(d.field(schema.ColTarget)),
			Extra:            d.extras(),
		}
		if d.err != nil {
			return nil, d.err
		}
	}
	return rows, nil
}

// lenientInt parses columns that are dropped from the output; a blank or
// odd value there should not fail the run.
func lenientInt(s string) int64 {
	v, _ := parseInt(s)
	return v
}

// DecodeObservations parses a batch of light curve records.
func DecodeObservations(batch *source.Batch) ([]RawObservation, error) {
	d := &decoder{b: batch.Binding}
	rows := make([]RawObservation, len(batch.Records))
	for i, rec := range batch.Records {
		d.rec = rec
		d.line = batch.FirstLine + int64(i)
		rows[i] = RawObservation{
			ObjectID:     d.intField(schema.ColObjectID),
			MJD:          d.floatField(schema.ColMJD),
			Passband:     d.intField(schema.ColPassband),
			Flux:         d.floatField(schema.ColFlux),
			FluxErr:      d.floatField(schema.ColFluxErr),
			DetectedBool: d.intField(schema.ColDetectedBool),
			Line:         d.line,
		}
		if d.err != nil {
			return nil, d.err
		}
	}
	return rows, nil
}
