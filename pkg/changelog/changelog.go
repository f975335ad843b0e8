// Package changelog implements the CORE's append-only change-log file
// format (spec §4.1, §6): records of {varint sequence, tag, varint
// length, payload}, one log per namespace object kind (containers,
// files). Replaying a log reconstructs the newest record per id, since
// the log is a whole-record journal rather than a delta journal
// (spec §4.1).
//
// This package is deliberately built on the standard library rather
// than a third-party WAL: the wire format is dictated byte-for-byte by
// spec §6 and nothing in the retrieved example pack implements that
// exact framing (hashicorp/raft-boltdb's log store uses its own B-tree
// format and is not meant to be read as a flat file). See DESIGN.md.
package changelog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Tag is the record type.
type Tag uint8

const (
	TagCreate Tag = iota
	TagUpdate
	TagUnlink
	TagRemove
)

// Record is one change-log entry.
type Record struct {
	Seq     uint64
	Tag     Tag
	Payload []byte
}

// Writer appends records to a change-log file, fsyncing after every
// append so a record is durable before the caller's raft Apply
// returns (spec §5: "namespace mutations may block on log append I/O").
type Writer struct {
	path string
	f    *os.File
	w    *bufio.Writer
	seq  uint64
}

// Open opens (creating if necessary) the change log at path for
// appending, and reports the highest sequence number found by
// scanning it, so the caller can resume numbering.
func Open(path string) (*Writer, uint64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, 0, fmt.Errorf("changelog: open %s: %w", path, err)
	}

	var lastSeq uint64
	if err := Replay(path, func(r Record) error {
		lastSeq = r.Seq
		return nil
	}); err != nil {
		f.Close()
		return nil, 0, err
	}

	return &Writer{path: path, f: f, w: bufio.NewWriter(f), seq: lastSeq}, lastSeq, nil
}

// Append writes one record and fsyncs before returning.
func (w *Writer) Append(tag Tag, payload []byte) (uint64, error) {
	w.seq++
	if err := writeRecord(w.w, Record{Seq: w.seq, Tag: tag, Payload: payload}); err != nil {
		return 0, err
	}
	if err := w.w.Flush(); err != nil {
		return 0, err
	}
	if err := w.f.Sync(); err != nil {
		return 0, err
	}
	return w.seq, nil
}

func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.f.Close()
}

func writeRecord(w io.Writer, r Record) error {
	var hdr [binary.MaxVarintLen64*2 + 1]byte
	n := binary.PutUvarint(hdr[:], r.Seq)
	hdr[n] = byte(r.Tag)
	n++
	n += binary.PutUvarint(hdr[n:], uint64(len(r.Payload)))
	if _, err := w.Write(hdr[:n]); err != nil {
		return err
	}
	_, err := w.Write(r.Payload)
	return err
}

// Replay streams every record in the log at path, in order, calling fn
// for each. A truncated trailing record (a crash mid-append) is
// silently ignored, matching the journal's whole-record-per-write
// design: a partial last record carries no information that wasn't
// already durable in the previous record for that id.
func Replay(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("changelog: replay %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		rec, err := readRecord(r)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

func readRecord(r *bufio.Reader) (Record, error) {
	seq, err := binary.ReadUvarint(r)
	if err != nil {
		return Record{}, err
	}
	tagByte, err := r.ReadByte()
	if err != nil {
		return Record{}, io.ErrUnexpectedEOF
	}
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return Record{}, io.ErrUnexpectedEOF
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Record{}, io.ErrUnexpectedEOF
	}
	return Record{Seq: seq, Tag: Tag(tagByte), Payload: payload}, nil
}

// Compact rewrites the log at path keeping only the newest record per
// id (decoded via keyOf) and dropping ids whose newest record is a
// remove, then atomically replaces the original (spec §4.1): it writes
// "<path>.compact" and renames it over path. While compaction runs,
// readers may continue against the old file descriptor (POSIX rename
// does not invalidate it); writers are suspended only around the
// rename itself, which is the caller's responsibility to serialize.
func Compact(path string, keyOf func(Record) (id uint64, isRemove bool)) error {
	latest := make(map[uint64]Record)
	order := make([]uint64, 0)

	if err := Replay(path, func(r Record) error {
		id, isRemove := keyOf(r)
		if _, seen := latest[id]; !seen {
			order = append(order, id)
		}
		if isRemove {
			delete(latest, id)
			return nil
		}
		latest[id] = r
		return nil
	}); err != nil {
		return err
	}

	tmpPath := path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("changelog: compact create %s: %w", tmpPath, err)
	}

	bw := bufio.NewWriter(tmp)
	for _, id := range order {
		rec, ok := latest[id]
		if !ok {
			continue
		}
		if err := writeRecord(bw, rec); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
