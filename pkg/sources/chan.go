package sources

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const (
	ChanAPIBase   = "https://a.4cdn.org"
	ChanMediaBase = "https://i.4cdn.org"
	ChanReferer   = "https://boards.4chan.org/"
)

// ChanExtensions are the attachment types fetched from a thread
var ChanExtensions = []string{".jpg", ".png", ".gif", ".webm"}

var chanThreadPattern = regexp.MustCompile(`boards\.4chan(?:nel)?\.org/(\w+)/thread/(\d+)`)

// ChanThread discovers the attachments of a 4chan thread through the
// read-only JSON API
type ChanThread struct {
	client    *Client
	APIBase   string
	MediaBase string
}

// NewChanThread creates a 4chan source against the public API hosts
func NewChanThread(client *Client) *ChanThread {
	return &ChanThread{client: client, APIBase: ChanAPIBase, MediaBase: ChanMediaBase}
}

type chanThreadDoc struct {
	Posts []chanPost `json:"posts"`
}

type chanPost struct {
	No  int64  `json:"no"`
	Tim int64  `json:"tim"`
	Ext string `json:"ext"`
}

func (c *ChanThread) Name() string { return "4chan" }

func (c *ChanThread) Match(target string) bool {
	return chanThreadPattern.MatchString(target)
}

// ParseChanThread extracts the board and thread number from a thread URL
func ParseChanThread(target string) (board, thread string, ok bool) {
	m := chanThreadPattern.FindStringSubmatch(target)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func (c *ChanThread) Discover(ctx context.Context, target string) (*Discovery, error) {
	board, thread, ok := ParseChanThread(target)
	if !ok {
		return nil, fmt.Errorf("not a 4chan thread URL: %s", target)
	}

	var doc chanThreadDoc
	apiURL := fmt.Sprintf("%s/%s/thread/%s.json", strings.TrimRight(c.APIBase, "/"), board, thread)
	if err := c.client.GetJSON(ctx, apiURL, &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch thread %s/%s: %w", board, thread, err)
	}

	d := &Discovery{
		CollectionKey: fmt.Sprintf("4chan_%s_%s", board, thread),
		Folder:        fmt.Sprintf("4chan/%s/%s", board, thread),
		Referer:       ChanReferer,
	}
	for _, post := range doc.Posts {
		if post.Tim == 0 || post.Ext == "" {
			continue
		}
		ext := strings.ToLower(post.Ext)
		if !supportedExt(ext) {
			continue
		}
		name := fmt.Sprintf("%d%s", post.Tim, ext)
		d.Items = append(d.Items, Item{
			URL:           fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.MediaBase, "/"), board, name),
			SuggestedName: name,
		})
	}
	return d, nil
}

func supportedExt(ext string) bool {
	for _, e := range ChanExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
