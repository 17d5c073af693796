package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

const defaultQuiet = 1200 * time.Millisecond

// Photo is one message of a Telegram album.
type Photo struct {
	ChatID  int64
	GroupID string
	FileID  string
	Caption string
}

// Album is the ordered set of photos that arrived under one media group id.
type Album struct {
	ChatID  int64
	GroupID string
	Caption string
	FileIDs []string
}

type Options struct {
	// Quiet is how long the collector waits after the last photo before
	// releasing the album.
	Quiet   time.Duration
	OnAlbum func(Album)
}

// Collector groups album photos that Telegram delivers as separate updates.
type Collector struct {
	mu      sync.Mutex
	quiet   time.Duration
	onAlbum func(Album)
	pending map[string]*pendingAlbum
	stopped bool
}

type pendingAlbum struct {
	album Album
	timer *time.Timer
}

func New(opts Options) *Collector {
	quiet := opts.Quiet
	if quiet <= 0 {
		quiet = defaultQuiet
	}
	return &Collector{
		quiet:   quiet,
		onAlbum: opts.OnAlbum,
		pending: make(map[string]*pendingAlbum),
	}
}

// Add records a photo and restarts the album's quiet timer. Photos without a
// group id or file id are ignored. The first non-empty caption wins.
func (c *Collector) Add(p Photo) {
	if p.GroupID == "" || p.FileID == "" {
		return
	}
	key := albumKey(p.ChatID, p.GroupID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	pa, ok := c.pending[key]
	if !ok {
		pa = &pendingAlbum{album: Album{ChatID: p.ChatID, GroupID: p.GroupID}}
		c.pending[key] = pa
	}
	pa.album.FileIDs = append(pa.album.FileIDs, p.FileID)
	if pa.album.Caption == "" && p.Caption != "" {
		pa.album.Caption = p.Caption
	}

	if pa.timer != nil {
		pa.timer.Stop()
	}
	pa.timer = time.AfterFunc(c.quiet, func() { c.release(key) })
}

// Pending reports how many albums are still waiting for their quiet period.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stop cancels every pending timer and drops unreleased albums.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for key, pa := range c.pending {
		if pa.timer != nil {
			pa.timer.Stop()
		}
		delete(c.pending, key)
	}
}

func (c *Collector) release(key string) {
	c.mu.Lock()
	pa, ok := c.pending[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	album := pa.album
	onAlbum := c.onAlbum
	c.mu.Unlock()

	if onAlbum != nil {
		onAlbum(album)
	}
}

func albumKey(chatID int64, groupID string) string {
	return fmt.Sprintf("%d:%s", chatID, groupID)
}
