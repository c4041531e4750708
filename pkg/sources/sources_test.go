package sources

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "mediafetch/pkg/errors"
	"mediafetch/pkg/logger"
)

func TestRegistryMatch(t *testing.T) {
	list := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(list, []byte("https://x/1.jpg\n"), 0644))
	reg := DefaultRegistry(NewClient(0, "test", logger.NewNopLogger()), nil)

	tests := []struct {
		target string
		want   string
	}{
		{"https://boards.4chan.org/g/thread/12345", "4chan"},
		{"https://boards.4channel.org/v/thread/999#p1000", "4chan"},
		{list, "list"},
		{"-", "list"},
		{"https://example.com/pic.png", "direct"},
	}
	for _, tt := range tests {
		d, err := reg.Match(tt.target)
		require.NoError(t, err, tt.target)
		assert.Equal(t, tt.want, d.Name(), tt.target)
	}

	_, err := reg.Match("not-a-thing")
	assert.True(t, errs.Is(err, errs.ErrorTypeConfiguration))
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"photo.jpg":        "photo.jpg",
		"my photo (1).png": "my_photo_1_.png",
		"../../etc/passwd": "etc_passwd",
		"":                 "file",
		"...":              "file",
		"a:b*c?.webm":      "a_b_c_.webm",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeName(in), in)
	}
}

func TestNameFromURL(t *testing.T) {
	assert.Equal(t, "1700000000123.jpg", NameFromURL("https://i.4cdn.org/g/1700000000123.jpg"))
	assert.Equal(t, "pic.png", NameFromURL("https://example.com/a/b/pic.png?size=large"))
	assert.Equal(t, "file", NameFromURL("https://example.com/"))
	assert.Equal(t, "file", NameFromURL("://bad"))
}

func TestDestinationAvoidsCollisions(t *testing.T) {
	d := &Discovery{
		Folder: "4chan/g/123",
		Items: []Item{
			{URL: "https://a.example/x/pic.jpg"},
			{URL: "https://b.example/y/pic.jpg"},
			{URL: "https://c.example/z/pic.jpg"},
			{URL: "https://d.example/other.png", SuggestedName: "named.png"},
		},
	}
	dest := Destination("/base", d)

	dir := filepath.Join("/base", "4chan", "g", "123")
	assert.Equal(t, filepath.Join(dir, "pic.jpg"), dest("https://a.example/x/pic.jpg"))
	assert.Equal(t, filepath.Join(dir, "pic_1.jpg"), dest("https://b.example/y/pic.jpg"))
	assert.Equal(t, filepath.Join(dir, "pic_2.jpg"), dest("https://c.example/z/pic.jpg"))
	assert.Equal(t, filepath.Join(dir, "named.png"), dest("https://d.example/other.png"))

	// stable across calls
	assert.Equal(t, dest("https://b.example/y/pic.jpg"), dest("https://b.example/y/pic.jpg"))
	// URLs not in the discovery still get a unique path
	assert.Equal(t, filepath.Join(dir, "pic_3.jpg"), dest("https://e.example/pic.jpg"))
}

func TestDestinationKeepsEarlierFiles(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "4chan", "g", "7")
	require.NoError(t, os.MkdirAll(dir, 0755))
	// left by an earlier run for a URL that is no longer listed
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.jpg"), []byte("old"), 0644))

	d := &Discovery{
		Folder: "4chan/g/7",
		Items: []Item{
			{URL: "https://a.example/x.jpg"},
			{URL: "https://b.example/y.jpg"},
		},
	}
	dest := Destination(base, d)

	assert.Equal(t, filepath.Join(dir, "x_1.jpg"), dest("https://a.example/x.jpg"))
	assert.Equal(t, filepath.Join(dir, "y.jpg"), dest("https://b.example/y.jpg"))

	// once a name is handed out it stays with its URL even after the file appears
	require.NoError(t, os.WriteFile(filepath.Join(dir, "y.jpg"), []byte("new"), 0644))
	assert.Equal(t, filepath.Join(dir, "y.jpg"), dest("https://b.example/y.jpg"))
}

func TestDestinationSanitizesFolder(t *testing.T) {
	dest := Destination("/base", &Discovery{Folder: "../escape/ok"})
	got := dest("https://x/1.jpg")
	assert.True(t, strings.HasPrefix(got, filepath.Join("/base")+string(filepath.Separator)))
	assert.NotContains(t, got, "..")
}

func TestListFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "My Favs.txt")
	content := "https://x/1.jpg\n\n# comment\n  https://x/2.png  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	d, err := ListFile{}.Discover(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "list_My_Favs", d.CollectionKey)
	assert.Equal(t, []string{"https://x/1.jpg", "https://x/2.png"}, d.URLs())
}

func TestListFileStdin(t *testing.T) {
	l := ListFile{Stdin: strings.NewReader("https://x/a.gif\n")}
	d, err := l.Discover(context.Background(), "-")
	require.NoError(t, err)
	assert.Equal(t, "list_stdin", d.CollectionKey)
	assert.Equal(t, []string{"https://x/a.gif"}, d.URLs())
}

func TestListFileMissing(t *testing.T) {
	assert.False(t, ListFile{}.Match(filepath.Join(t.TempDir(), "nope.txt")))
	_, err := ListFile{}.Discover(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestDirectURL(t *testing.T) {
	d, err := DirectURL{}.Discover(context.Background(), "https://cdn.example.com/media/clip.webm")
	require.NoError(t, err)
	assert.Equal(t, "direct_cdn.example.com", d.CollectionKey)
	assert.Equal(t, "cdn.example.com", d.Folder)
	assert.Equal(t, []string{"https://cdn.example.com/media/clip.webm"}, d.URLs())
	assert.False(t, DirectURL{}.Match("ftp://x/y"))
}
