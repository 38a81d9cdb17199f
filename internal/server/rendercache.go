package server

import (
	"container/list"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"

	"example.com/segyview/internal/render"
)

const defaultRenderCacheEntries = 64

// renderCache is an LRU of encoded images keyed by input identity and
// render configuration. Entries are stored s2-compressed.
type renderCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[uint64]*list.Element
}

type renderEntry struct {
	key    uint64
	width  int
	height int
	packed []byte
}

// newRenderCache returns a cache holding up to max images. A negative max
// disables caching.
func newRenderCache(max int) *renderCache {
	if max == 0 {
		max = defaultRenderCacheEntries
	}
	return &renderCache{max: max, order: list.New(), entries: make(map[uint64]*list.Element)}
}

// renderKey identifies a render of one file version. Any change in size or
// modification time produces a new key.
func renderKey(path string, size int64, modTime time.Time, cfg render.Config) (uint64, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return 0, err
	}
	d := xxhash.New()
	d.WriteString(path)
	d.WriteString("\x00")
	d.WriteString(strconv.FormatInt(size, 10))
	d.WriteString("\x00")
	d.WriteString(strconv.FormatInt(modTime.UnixNano(), 10))
	d.WriteString("\x00")
	d.Write(cfgJSON)
	return d.Sum64(), nil
}

func (c *renderCache) get(key uint64) (*render.Image, bool) {
	if c.max < 0 {
		return nil, false
	}
	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	c.order.MoveToFront(el)
	entry := el.Value.(*renderEntry)
	c.mu.Unlock()

	data, err := s2.Decode(nil, entry.packed)
	if err != nil {
		c.remove(key)
		return nil, false
	}
	return &render.Image{Width: entry.width, Height: entry.height, Data: data, Format: render.FormatPNG}, true
}

func (c *renderCache) put(key uint64, img *render.Image) {
	if c.max < 0 || img == nil {
		return
	}
	entry := &renderEntry{key: key, width: img.Width, height: img.Height, packed: s2.Encode(nil, img.Data)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value = entry
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(entry)
	for c.order.Len() > c.max {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.entries, last.Value.(*renderEntry).key)
	}
}

func (c *renderCache) remove(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

func (c *renderCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
