package cache

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	errs "mediafetch/pkg/errors"
)

const textExt = ".txt"

// TextStore keeps one newline-delimited file of URLs per collection key
type TextStore struct {
	dir string

	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	// committed remembers what each key's file holds so Commit can skip
	// duplicates without rereading it
	committed map[string]*record
}

// record is the known content of one key's file and the size it had then
type record struct {
	urls URLSet
	size int64
}

// NewTextStore creates a text store rooted at dir
func NewTextStore(dir string) (*TextStore, error) {
	if dir == "" {
		return nil, errs.Configuration("cache directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Storage("create cache directory", err)
	}
	return &TextStore{
		dir:       dir,
		locks:     make(map[string]*sync.Mutex),
		committed: make(map[string]*record),
	}, nil
}

// Path returns the file backing key
func (s *TextStore) Path(key string) string {
	return filepath.Join(s.dir, EscapeKey(key)+textExt)
}

func (s *TextStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *TextStore) Load(ctx context.Context, key string) (URLSet, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	return s.read(key)
}

func (s *TextStore) read(key string) (URLSet, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return URLSet{}, nil
		}
		return nil, errs.Storage("open cache file", err)
	}
	defer f.Close()

	set := URLSet{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			set.Add(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Storage("read cache file", err)
	}
	return set, nil
}

// known returns the record of key, rereading the file when its size no
// longer matches, e.g. after another process cleared it. The file is
// append-only and duplicate lines are harmless, so an unreadable file starts
// from an empty set rather than blocking appends. Callers hold the key's lock.
func (s *TextStore) known(key string) *record {
	var size int64
	if fi, err := os.Stat(s.Path(key)); err == nil {
		size = fi.Size()
	}

	s.mu.Lock()
	rec, ok := s.committed[key]
	s.mu.Unlock()
	if ok && rec.size == size {
		return rec
	}

	urls, err := s.read(key)
	if err != nil {
		urls = URLSet{}
	}
	rec = &record{urls: urls, size: size}
	s.mu.Lock()
	s.committed[key] = rec
	s.mu.Unlock()
	return rec
}

func (s *TextStore) Commit(ctx context.Context, key string, urls []string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := checkCtx(ctx); err != nil {
		return err
	}

	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	rec := s.known(key)
	existing := rec.urls

	var (
		b     strings.Builder
		fresh []string
	)
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || strings.ContainsAny(u, "\r\n") || existing.Has(u) {
			continue
		}
		existing.Add(u)
		fresh = append(fresh, u)
		b.WriteString(u)
		b.WriteByte('\n')
	}
	if len(fresh) == 0 {
		return nil
	}
	// forget the batch again unless it reaches the disk
	written := false
	defer func() {
		if !written {
			for _, u := range fresh {
				delete(existing, u)
			}
		}
	}()

	f, err := os.OpenFile(s.Path(key), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Storage("open cache file", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return errs.Storage("append cache file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.Storage("sync cache file", err)
	}
	written = true
	rec.size += int64(b.Len())
	if err := f.Close(); err != nil {
		return errs.Storage("close cache file", err)
	}
	return nil
}

func (s *TextStore) Clear(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	delete(s.committed, key)
	s.mu.Unlock()

	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return errs.Storage("remove cache file", err)
	}
	return nil
}

func (s *TextStore) ClearAll(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.Clear(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *TextStore) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errs.Storage("list cache directory", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, textExt) {
			continue
		}
		key, err := UnescapeKey(strings.TrimSuffix(name, textExt))
		if err != nil {
			return nil, errs.Storage("decode cache file name", fmt.Errorf("%s: %w", name, err))
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *TextStore) Close() error { return nil }
