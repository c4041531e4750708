package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mediafetch/pkg/config"
	errs "mediafetch/pkg/errors"
)

// Store records which URLs have been fetched for each collection key.
// Records are append-only; only Clear and ClearAll remove them.
type Store interface {
	// Load returns every URL recorded for key. A key with no record yields an empty set.
	Load(ctx context.Context, key string) (URLSet, error)
	// Commit durably records urls for key. Recording a URL twice has no further effect.
	Commit(ctx context.Context, key string, urls []string) error
	// Clear removes the record for key
	Clear(ctx context.Context, key string) error
	// ClearAll removes every record
	ClearAll(ctx context.Context) error
	// Keys lists the collection keys that have a record, sorted
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// URLSet is a set of source URLs
type URLSet map[string]struct{}

// NewURLSet builds a set from urls
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s[u] = struct{}{}
	}
	return s
}

// Has reports whether url is in the set
func (s URLSet) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Add inserts url
func (s URLSet) Add(url string) {
	s[url] = struct{}{}
}

// Sorted returns the members in lexical order
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Open opens the store selected by cfg.Backend under cfg.Directory
func Open(cfg config.CacheConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendText:
		return NewTextStore(cfg.Directory)
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.Directory)
	case config.BackendBolt:
		return NewBoltStore(cfg.Directory)
	default:
		return nil, errs.Configuration("unknown cache backend %q", cfg.Backend)
	}
}

func checkKey(key string) error {
	if key == "" {
		return errs.Configuration("collection key must not be empty")
	}
	return nil
}

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Cancelled(err)
	}
	return nil
}

// EscapeKey maps a collection key to a file name stem. Letters, digits, '.',
// '_' and '-' are kept; every other byte becomes %XX. The mapping is
// reversible, so distinct keys never share a file.
func EscapeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isSafe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// UnescapeKey reverses EscapeKey
func UnescapeKey(name string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(name) {
			return "", fmt.Errorf("truncated escape in %q", name)
		}
		v, err := strconv.ParseUint(name[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("bad escape in %q: %w", name, err)
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}

func isSafe(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '_', c == '-':
		return true
	}
	return false
}
