package dedup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// logFile is the part of *os.File the store writes through.
type logFile interface {
	io.WriteCloser
	io.Seeker
	Sync() error
	Truncate(size int64) error
}

// JSONLStore keeps one JSON record per line in an append-only file.
type JSONLStore struct {
	mu     sync.Mutex
	path   string
	file   logFile
	index  index
	closed bool
}

var _ Store = (*JSONLStore)(nil)

// OpenJSONL loads the log at path, creating it if needed. A partial last line
// left by an interrupted append is discarded; any other unparsable line is
// reported as ErrCorrupt.
func OpenJSONL(path string) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ErrDedup.MsgErr("unable to create dedup log directory", err)
		}
	}

	ix, validLen, err := loadJSONL(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, ErrDedup.MsgErr("unable to open dedup log", err)
	}
	if err := f.Truncate(validLen); err != nil {
		f.Close()
		return nil, ErrDedup.MsgErr("unable to truncate dedup log", err)
	}
	if _, err := f.Seek(validLen, 0); err != nil {
		f.Close()
		return nil, ErrDedup.MsgErr("unable to seek dedup log", err)
	}

	return &JSONLStore{path: path, file: f, index: ix}, nil
}

func loadJSONL(path string) (index, int64, error) {
	ix := newIndex()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ix, 0, nil
	}
	if err != nil {
		return ix, 0, ErrDedup.MsgErr("unable to read dedup log", err)
	}

	var offset int64
	lineNum := 0
	for len(data) > 0 {
		lineNum++
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			// unterminated last line: an append that did not complete
			break
		}
		line := bytes.TrimSpace(data[:nl])
		if len(line) > 0 {
			var rec Record
			if err := json.Unmarshal(line, &rec); err != nil || rec.ID == "" {
				return ix, 0, ErrCorrupt.Msg(fmt.Sprintf("%s: line %d is not a record", path, lineNum))
			}
			ix.add(rec)
		}
		offset += int64(nl + 1)
		data = data[nl+1:]
	}
	return ix, offset, nil
}

// Contains reports whether id has been recorded.
func (s *JSONLStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.contains(id)
}

// Append writes rec as a single line and syncs the file.
func (s *JSONLStore) Append(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.index.contains(rec.ID) {
		return nil
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return ErrDedup.MsgErr("unable to encode record", err)
	}
	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return ErrDedup.MsgErr("unable to seek dedup log", err)
	}
	if _, err := s.file.Write(append(b, '\n')); err != nil {
		// drop any partial line so the next append starts on a fresh one
		if terr := s.file.Truncate(offset); terr == nil {
			s.file.Seek(offset, io.SeekStart)
		}
		return ErrDedup.MsgErr("unable to write record", err)
	}
	if err := s.file.Sync(); err != nil {
		return ErrDedup.MsgErr("unable to sync dedup log", err)
	}
	s.index.add(rec)
	return nil
}

// Records returns all records in append order.
func (s *JSONLStore) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.snapshot()
}

// Len returns the number of records.
func (s *JSONLStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index.records)
}

// Compact rewrites the log from memory into a temporary file and renames it
// over the original, dropping blank lines and any duplicates.
func (s *JSONLStore) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return ErrDedup.MsgErr("unable to create temporary dedup log", err)
	}
	defer os.Remove(tmp.Name())

	var buf bytes.Buffer
	for _, rec := range s.index.records {
		b, err := json.Marshal(rec)
		if err != nil {
			tmp.Close()
			return ErrDedup.MsgErr("unable to encode record", err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return ErrDedup.MsgErr("unable to write temporary dedup log", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ErrDedup.MsgErr("unable to sync temporary dedup log", err)
	}
	if err := tmp.Close(); err != nil {
		return ErrDedup.MsgErr("unable to close temporary dedup log", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return ErrDedup.MsgErr("unable to replace dedup log", err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return ErrDedup.MsgErr("unable to reopen dedup log", err)
	}
	s.file.Close()
	s.file = f
	return nil
}

// Close closes the log file.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
