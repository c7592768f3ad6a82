package transform

import (
	"fmt"
	"math"

	"github.com/johndauphine/plasticc-ingest/internal/schema"
)

// Observation is one row of the output observations table.
type Observation struct {
	ObjectID  string
	Time      float64
	Band      string
	Flux      float64
	FluxError float64
	Detected  int64
}

// MapObservations maps passband codes to band labels, renames the measurement
// fields and rewrites object_id per row. Any passband outside 0..5 fails
// the whole batch.
func MapObservations(raw []RawObservation) ([]Observation, error) {
	out := make([]Observation, len(raw))

	// Light curves are grouped by object, so consecutive rows usually share
	// an id and the formatted string can be reused.
	var (
		lastID  int64 = -1
		lastStr string
	)

	for i, r := range raw {
		band, err := schema.BandLabel(r.Passband)
		if err != nil {
			return nil, fmt.Errorf("observation line %d (object %d): %w", r.Line, r.ObjectID, err)
		}

		if r.ObjectID != lastID || lastStr == "" {
			id, err := schema.FormatObjectID(r.ObjectID)
			if err != nil {
				return nil, fmt.Errorf("observation line %d: %w", r.Line, err)
			}
			lastID, lastStr = r.ObjectID, id
		}

		out[i] = Observation{
			ObjectID:  lastStr,
			Time:      r.MJD,
			Band:      band,
			Flux:      r.Flux,
			FluxError: r.FluxErr,
			Detected:  r.DetectedBool,
		}
	}
	return out, nil
}

// Values returns the row in schema.ObservationsTable column order.
func (o Observation) Values() []any {
	return []any{o.ObjectID, nullFloat(o.Time), o.Band, nullFloat(o.Flux), nullFloat(o.FluxError), o.Detected}
}

// ObservationRows converts rows for a store write.
func ObservationRows(obs []Observation) [][]any {
	rows := make([][]any, len(obs))
	for i, o := range obs {
		rows[i] = o.Values()
	}
	return rows
}

// nullFloat stores NaN as SQL NULL.
func nullFloat(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}
