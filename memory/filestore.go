package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DocumentKey is the top-level key holding the entry sequence.
const DocumentKey = "unified_memory"

// FileStore keeps the entry sequence in a single JSON document. Every Append
// rewrites the whole document through a temp file and a rename, so readers
// see either the old or the new document, never a partial one.
//
// Appends from one FileStore are serialised. Two FileStores (or two
// processes) pointed at the same path are not coordinated: both may read the
// same snapshot and the later rename drops the other's entry.
type FileStore struct {
	path     string
	observer Observer
	mu       sync.Mutex
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithSkipObserver reports document content skipped while reading.
func WithSkipObserver(o Observer) FileStoreOption {
	return func(s *FileStore) { s.observer = o }
}

// NewFileStore creates a Store backed by the JSON document at path. The file
// and its parent directories are created on the first Append.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	_, items, corrupt, err := s.read()
	if err != nil {
		return nil, err
	}
	if corrupt {
		return []Entry{}, nil
	}

	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		var e Entry
		if err := json.Unmarshal(item, &e); err != nil {
			s.skip(i, fmt.Sprintf("malformed entry: %v", err))
			continue
		}
		if !e.Kind.Valid() {
			s.skip(i, fmt.Sprintf("unknown type %q", e.Kind))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *FileStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	item, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: encode entry: %v", ErrSaveFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, items, corrupt, err := s.read()
	if err != nil {
		return err
	}
	if corrupt {
		// Keep the unreadable bytes next to the document instead of
		// overwriting them.
		if err := os.Rename(s.path, s.path+".corrupt"); err != nil {
			return fmt.Errorf("%w: %s: set aside corrupt document: %v", ErrSaveFailed, s.path, err)
		}
		doc = map[string]json.RawMessage{}
		items = nil
	}

	items = append(items, item)
	seq, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrSaveFailed, err)
	}
	doc[DocumentKey] = seq

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrSaveFailed, err)
	}
	return s.write(data)
}

// read returns the decoded top-level document and its entry items. Unknown
// top-level keys and unreadable items are carried through untouched so a
// rewrite preserves them. corrupt is true when the file exists but is not a
// JSON object.
func (s *FileStore) read() (doc map[string]json.RawMessage, items []json.RawMessage, corrupt bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]json.RawMessage{}, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("%w: %s: %v", ErrLoadFailed, s.path, err)
	}

	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		s.skip(-1, "unparseable document")
		return nil, nil, true, nil
	}

	raw, ok := doc[DocumentKey]
	if !ok || string(raw) == "null" {
		return doc, nil, false, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		s.skip(-1, fmt.Sprintf("%s is not a list", DocumentKey))
		return nil, nil, true, nil
	}
	return doc, items, false, nil
}

func (s *FileStore) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}
	return nil
}

func (s *FileStore) skip(index int, reason string) {
	if s.observer != nil {
		s.observer.Skipped(s.path, index, reason)
	}
}
