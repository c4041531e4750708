package sources

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ListFile reads newline-delimited URLs from a file, or stdin for "-".
// Blank lines and lines starting with # are ignored.
type ListFile struct {
	// Stdin is read for "-"; os.Stdin when nil
	Stdin io.Reader
}

func (ListFile) Name() string { return "list" }

func (ListFile) Match(target string) bool {
	if target == "-" {
		return true
	}
	if isHTTP(target) {
		return false
	}
	info, err := os.Stat(target)
	return err == nil && !info.IsDir()
}

func (l ListFile) Discover(ctx context.Context, target string) (*Discovery, error) {
	var r io.Reader
	key := "list_stdin"
	if target == "-" {
		r = l.Stdin
		if r == nil {
			r = os.Stdin
		}
	} else {
		f, err := os.Open(target)
		if err != nil {
			return nil, fmt.Errorf("failed to open URL list: %w", err)
		}
		defer f.Close()
		r = f
		base := filepath.Base(target)
		key = "list_" + SanitizeName(strings.TrimSuffix(base, filepath.Ext(base)))
	}

	d := &Discovery{CollectionKey: key, Folder: key}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d.Items = append(d.Items, Item{URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return d, nil
}

// DirectURL treats the target itself as the only media URL. Its collection
// is the URL's host, so repeated single fetches from one site share a cache.
type DirectURL struct{}

func (DirectURL) Name() string { return "direct" }

func (DirectURL) Match(target string) bool { return isHTTP(target) }

func (DirectURL) Discover(_ context.Context, target string) (*Discovery, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", target)
	}
	host := SanitizeName(u.Hostname())
	return &Discovery{
		CollectionKey: "direct_" + host,
		Folder:        host,
		Items:         []Item{{URL: target}},
	}, nil
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
