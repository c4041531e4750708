package sources

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/models"
)

// Item is one discovered media URL
type Item struct {
	URL string
	// SuggestedName is the preferred file name; empty means derive it from the URL
	SuggestedName string
}

// Discovery is what a source found for one target
type Discovery struct {
	// CollectionKey namespaces the fetch cache for this target
	CollectionKey string
	// Folder is the output subdirectory, relative to the base directory
	Folder  string
	Referer string
	Items   []Item
}

// URLs returns the item URLs in discovery order
func (d *Discovery) URLs() []string {
	out := make([]string, len(d.Items))
	for i, item := range d.Items {
		out[i] = item.URL
	}
	return out
}

// Discoverer turns a user-supplied target into candidate media URLs
type Discoverer interface {
	Name() string
	Match(target string) bool
	Discover(ctx context.Context, target string) (*Discovery, error)
}

// Registry holds the known discoverers in priority order
type Registry struct {
	discoverers []Discoverer
}

// NewRegistry creates a registry from discoverers, first match wins
func NewRegistry(ds ...Discoverer) *Registry {
	return &Registry{discoverers: ds}
}

// DefaultRegistry registers every built-in source; stdin feeds the "-" list target
func DefaultRegistry(client *Client, stdin io.Reader) *Registry {
	return NewRegistry(
		NewChanThread(client),
		ListFile{Stdin: stdin},
		DirectURL{},
	)
}

// Match returns the first discoverer that accepts target
func (r *Registry) Match(target string) (Discoverer, error) {
	for _, d := range r.discoverers {
		if d.Match(target) {
			return d, nil
		}
	}
	names := make([]string, len(r.discoverers))
	for i, d := range r.discoverers {
		names[i] = d.Name()
	}
	return nil, errs.Configuration("no source understands %q (known sources: %s)", target, strings.Join(names, ", "))
}

var unsafeName = regexp.MustCompile(`[^\w.\-]+`)

// SanitizeName makes s safe to use as a single path element
func SanitizeName(s string) string {
	s = unsafeName.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "file"
	}
	return s
}

// NameFromURL returns the sanitized last path element of rawURL
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "file"
	}
	return SanitizeName(path.Base(u.Path))
}

// Destination maps each discovered URL to a file under baseDir/d.Folder.
// Names come from SuggestedName or the URL and are assigned on first use, so
// only URLs that are actually fetched claim one. A name already taken by
// another URL, or by a file an earlier run left on disk, gets a numeric
// suffix; existing files are never overwritten.
func Destination(baseDir string, d *Discovery) models.DestinationFunc {
	dir := baseDir
	for _, part := range strings.Split(d.Folder, "/") {
		if part != "" {
			dir = filepath.Join(dir, SanitizeName(part))
		}
	}

	preferred := make(map[string]string, len(d.Items))
	for _, item := range d.Items {
		if _, ok := preferred[item.URL]; ok {
			continue
		}
		name := NameFromURL(item.URL)
		if item.SuggestedName != "" {
			name = SanitizeName(item.SuggestedName)
		}
		preferred[item.URL] = name
	}

	var mu sync.Mutex
	assigned := make(map[string]string)
	taken := make(map[string]bool)
	inUse := func(name string) bool {
		if taken[name] {
			return true
		}
		_, err := os.Lstat(filepath.Join(dir, name))
		return err == nil
	}

	return func(u string) string {
		mu.Lock()
		defer mu.Unlock()
		if name, ok := assigned[u]; ok {
			return filepath.Join(dir, name)
		}

		name, ok := preferred[u]
		if !ok {
			name = NameFromURL(u)
		}
		ext := path.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		candidate := name
		for i := 1; inUse(candidate); i++ {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		taken[candidate] = true
		assigned[u] = candidate
		return filepath.Join(dir, candidate)
	}
}
