package orchestrator

import (
	"fmt"
	"time"
)

// Stats tracks timing for an observation load.
type Stats struct {
	// ReadTime is time spent reading and splitting CSV records.
	ReadTime time.Duration

	// ConvertTime is time spent decoding and mapping rows.
	ConvertTime time.Duration

	// WriteTime is time spent in the store.
	WriteTime time.Duration

	Rows    int64
	Batches int
}

// String returns a formatted summary of the stats.
func (s *Stats) String() string {
	total := s.TotalTime()
	if total == 0 {
		return "no data"
	}
	return fmt.Sprintf("read=%.1fs (%.0f%%), convert=%.1fs (%.0f%%), write=%.1fs (%.0f%%), rows=%d, batches=%d",
		s.ReadTime.Seconds(), float64(s.ReadTime)/float64(total)*100,
		s.ConvertTime.Seconds(), float64(s.ConvertTime)/float64(total)*100,
		s.WriteTime.Seconds(), float64(s.WriteTime)/float64(total)*100,
		s.Rows, s.Batches)
}

// TotalTime returns the sum of all timing components.
func (s *Stats) TotalTime() time.Duration {
	return s.ReadTime + s.ConvertTime + s.WriteTime
}

// RowsPerSecond calculates the throughput.
func (s *Stats) RowsPerSecond() float64 {
	total := s.TotalTime()
	if total == 0 {
		return 0
	}
	return float64(s.Rows) / total.Seconds()
}

// merge adds other into s.
func (s *Stats) merge(other Stats) {
	s.ReadTime += other.ReadTime
	s.ConvertTime += other.ConvertTime
	s.WriteTime += other.WriteTime
	s.Rows += other.Rows
	s.Batches += other.Batches
}
