// Package diagnostics records region-level diagnostics. The cellcaller
// package itself records none; in this module only cmd/bio-cell-caller
// writes a Record, when cellcaller.Call fails. A Sink batches records,
// compresses each batch, and writes it through grailbio/base/file, mirroring
// markduplicates/mark_duplicates.go's generateBAM output-path handling. No
// S3 implementation is registered in this module, so only local paths work.
package diagnostics

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// Kind names the reason a Record was emitted.
type Kind int

const (
	// CapacityExceeded is recorded when a region's joint-genotype space or
	// seed count exceeds the configured cap (spec 7).
	CapacityExceeded Kind = iota
	// InferenceUnderflow is recorded when every seed at a topology size
	// underflowed (spec 7).
	InferenceUnderflow
	// Cancelled is recorded when a region's search observed a cancelled
	// context before completing.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case CapacityExceeded:
		return "CapacityExceeded"
	case InferenceUnderflow:
		return "InferenceUnderflow"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Record is one diagnostic event, scoped to a single region.
type Record struct {
	Kind          Kind
	RegionName    string
	TopologySize  int
	AttemptedSize int64 // joint-genotype-space size that triggered CapacityExceeded, if relevant
	Detail        string
}

// Sink batches Records and flushes them as gzip-compressed, snappy-framed
// batches (spec domain-stack: klauspost/compress for the outer gzip
// envelope the way pileup/common.go wraps its TSV output, golang/snappy for
// the inner per-batch record framing the way encoding/bampair's
// diskMateShard frames BAM records). Sink is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	path    string
	flushAt int
	pending []Record
}

// DefaultFlushAt is the batch size at which NewSink flushes automatically
// if the caller does not call Flush explicitly.
const DefaultFlushAt = 256

// NewSink returns a Sink that appends flushed batches to path (local path
// or any grailbio/base/file-registered scheme, e.g. s3://...).
func NewSink(path string) *Sink {
	return &Sink{path: path, flushAt: DefaultFlushAt}
}

// Record appends a diagnostic record, flushing automatically once flushAt
// records have accumulated.
func (s *Sink) Record(ctx context.Context, r Record) {
	s.mu.Lock()
	s.pending = append(s.pending, r)
	full := len(s.pending) >= s.flushAt
	s.mu.Unlock()

	if full {
		if err := s.Flush(ctx); err != nil {
			log.Error.Printf("diagnostics: flush failed: %v", err)
		}
	}
}

// Flush rewrites path with the records already there followed by all
// pending records, as one compressed batch, and clears the pending buffer.
// It is a no-op if nothing is pending.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	encoded, err := encodeBatch(batch)
	if err != nil {
		return errors.E(err, "diagnostics: encode batch")
	}

	// file.Create replaces the destination, so the records of earlier
	// flushes are read back and written again ahead of this batch.
	if prev, rerr := ReadBatches(ctx, s.path); rerr == nil {
		batch = append(prev, batch...)
	}

	out, err := file.Create(ctx, s.path)
	if err != nil {
		return errors.E(err, "diagnostics: create sink", s.path)
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil {
			log.Error.Printf("diagnostics: close %s: %v", s.path, cerr)
		}
	}()

	gz := gzip.NewWriter(out.Writer(ctx))
	if _, err := gz.Write(encoded); err != nil {
		return errors.E(err, "diagnostics: write sink", s.path)
	}
	return gz.Close()
}

// encodeBatch frames each record (4-byte length prefix + snappy-compressed
// fields) behind a snappy buffered writer, matching
// encoding/bampair/disk_mate_shard.go's length-prefixed-record-over-snappy
// framing.
func encodeBatch(batch []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	for _, r := range batch {
		fields := []byte(fmt.Sprintf("%d\x00%s\x00%d\x00%d\x00%s", r.Kind, r.RegionName, r.TopologySize, r.AttemptedSize, r.Detail))
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(fields)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return nil, err
		}
		if _, err := w.Write(fields); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadBatches decodes every batch written by Flush back into Records, for
// offline inspection of a diagnostics sink file.
func ReadBatches(ctx context.Context, path string) ([]Record, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "diagnostics: open sink", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil {
			log.Error.Printf("diagnostics: close %s: %v", path, cerr)
		}
	}()

	gz, err := gzip.NewReader(in.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, "diagnostics: open gzip reader", path)
	}
	defer gz.Close()

	r := snappy.NewReader(gz)
	var records []Record
	var lenBuf [4]byte
	for {
		n, err := io.ReadFull(r, lenBuf[:])
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err != nil {
			return nil, errors.E(err, "diagnostics: read record length", path)
		}
		size := binary.LittleEndian.Uint32(lenBuf[:])
		fields := make([]byte, size)
		if _, err := io.ReadFull(r, fields); err != nil {
			return nil, errors.E(err, "diagnostics: read record body", path)
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return nil, errors.E(err, "diagnostics: decode record", path)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(fields []byte) (Record, error) {
	parts := bytes.SplitN(fields, []byte{0}, 5)
	if len(parts) != 5 {
		return Record{}, fmt.Errorf("diagnostics: malformed record %q", fields)
	}
	var kind, size int
	var attempted int64
	if _, err := fmt.Sscanf(string(parts[0]), "%d", &kind); err != nil {
		return Record{}, err
	}
	if _, err := fmt.Sscanf(string(parts[2]), "%d", &size); err != nil {
		return Record{}, err
	}
	if _, err := fmt.Sscanf(string(parts[3]), "%d", &attempted); err != nil {
		return Record{}, err
	}
	return Record{Kind: Kind(kind), RegionName: string(parts[1]), TopologySize: size, AttemptedSize: attempted, Detail: string(parts[4])}, nil
}
