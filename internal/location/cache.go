package location

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Mirror is the durable copy of the cached snapshot.
type Mirror interface {
	// Load returns the stored snapshot, or nil if nothing is stored.
	Load() (*Snapshot, error)
	// Save replaces the stored snapshot.
	Save(Snapshot) error
}

// Cache holds at most one current snapshot and keeps it equal to its mirror.
type Cache struct {
	ttl    time.Duration
	mirror Mirror

	mu      sync.Mutex
	current *Snapshot
	subs    map[int]chan Snapshot
	nextID  int
}

// NewCache creates an empty cache. A nil mirror keeps the cache in memory only.
func NewCache(ttl time.Duration, mirror Mirror) *Cache {
	return &Cache{ttl: ttl, mirror: mirror, subs: make(map[int]chan Snapshot)}
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Latest returns the cached snapshot regardless of age.
func (c *Cache) Latest() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Snapshot{}, false
	}
	return *c.current, true
}

// Fresh returns the cached snapshot if it is younger than the TTL at now.
func (c *Cache) Fresh(now time.Time) (Snapshot, bool) {
	s, ok := c.Latest()
	if !ok || now.Sub(s.Timestamp) >= c.ttl {
		return Snapshot{}, false
	}
	return s, true
}

// Store writes s through to the mirror and memory, then broadcasts it.
// A snapshot older than the cached one is discarded and Store returns false.
// If the mirror write fails nothing changes.
func (c *Cache) Store(s Snapshot) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && s.Timestamp.Before(c.current.Timestamp) {
		return false, nil
	}
	if c.mirror != nil {
		if err := c.mirror.Save(s); err != nil {
			return false, fmt.Errorf("save location mirror: %w", err)
		}
	}
	c.current = &s
	c.broadcast(s)
	return true, nil
}

// Restore loads the mirror into memory and republishes it.
func (c *Cache) Restore() error {
	if c.mirror == nil {
		return nil
	}
	s, err := c.mirror.Load()
	if err != nil {
		return fmt.Errorf("load location mirror: %w", err)
	}
	if s == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = s
	c.broadcast(*s)
	return nil
}

// Subscribe returns a channel that receives every stored snapshot.
// Readers that fall behind only see the latest one.
func (c *Cache) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 1)
	id := c.nextID
	c.nextID++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// broadcast must be called with c.mu held.
func (c *Cache) broadcast(s Snapshot) {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// FileMirror stores the snapshot as JSON in a single file.
type FileMirror struct {
	path string
}

// NewFileMirror creates a mirror backed by path.
func NewFileMirror(path string) *FileMirror {
	return &FileMirror{path: path}
}

// Load implements Mirror.
func (m *FileMirror) Load() (*Snapshot, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", m.path, err)
	}
	return &s, nil
}

// Save implements Mirror. The file is replaced atomically.
func (m *FileMirror) Save(s Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
