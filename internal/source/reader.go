// Package source reads raw PLAsTiCC CSV files in bounded batches.
package source

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/johndauphine/plasticc-ingest/internal/schema"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Batch is a group of raw records read together.
type Batch struct {
	Binding *schema.Binding
	Records [][]string

	// FirstLine is the file line number of Records[0]; the header is line 1.
	FirstLine int64
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int { return len(b.Records) }

// Reader produces batches of at most BatchSize records from a CSV stream.
// Once Next returns io.EOF the sequence is exhausted; to read again, open
// the file again.
type Reader struct {
	closers   []io.Closer
	csv       *csv.Reader
	binding   *schema.Binding
	batchSize int
	rows      int64
	done      bool
}

// Open opens a CSV file, gzip-compressed or not, and binds its header to in.
// A batchSize of 0 or less reads the whole file as one batch.
func Open(path string, in schema.Input, batchSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, in, batchSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closers = append([]io.Closer{f}, r.closers...)
	return r, nil
}

// NewReader wraps r, transparently decompressing gzip input. The caller
// keeps ownership of r.
func NewReader(r io.Reader, in schema.Input, batchSize int) (*Reader, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	rd := &Reader{batchSize: batchSize}

	var stream io.Reader = br
	magic, err := br.Peek(len(gzipMagic))
	if err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		rd.closers = append(rd.closers, gz)
		stream = gz
	}

	rd.csv = csv.NewReader(stream)

	header, err := rd.csv.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file, no header", in.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	binding, err := schema.Bind(in, header)
	if err != nil {
		return nil, err
	}
	rd.binding = binding
	rd.csv.FieldsPerRecord = binding.Width()

	return rd, nil
}

// Binding returns the header binding.
func (r *Reader) Binding() *schema.Binding { return r.binding }

// Rows returns the number of records returned so far.
func (r *Reader) Rows() int64 { return r.rows }

// Next returns the next batch, or io.EOF when no records remain.
func (r *Reader) Next() (*Batch, error) {
	if r.done {
		return nil, io.EOF
	}

	capHint := r.batchSize
	if capHint <= 0 || capHint > 1<<16 {
		capHint = 1 << 16
	}

	batch := &Batch{
		Binding:   r.binding,
		Records:   make([][]string, 0, capHint),
		FirstLine: r.rows + 2,
	}

	for r.batchSize <= 0 || len(batch.Records) < r.batchSize {
		rec, err := r.csv.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.binding.Input().Name, err)
		}
		batch.Records = append(batch.Records, rec)
	}

	if len(batch.Records) == 0 {
		return nil, io.EOF
	}
	r.rows += int64(len(batch.Records))
	return batch, nil
}

// Close releases the decompressor and the underlying file, if owned.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
