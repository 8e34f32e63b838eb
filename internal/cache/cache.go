// Package cache provides the persistent, content-addressed audio cache.
// Synthesized WAV blobs are stored one file per fingerprint alongside a
// JSON index; the least-used entries are evicted when the store would
// exceed its size budget.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

const (
	indexFile = "index.json"

	// Blobs below the WAV header size cannot be valid audio and are
	// discarded on read.
	minBlobSize = 44

	previewRunes = 50
)

// Entry is the index record for one cached blob. The on-disk index maps
// cache key to this structure.
type Entry struct {
	TextPreview string  `json:"text_preview"`
	Voice       string  `json:"voice"`
	Speed       float64 `json:"speed"`
	Size        int64   `json:"size"`
	Hits        int64   `json:"hits"`
	Seq         uint64  `json:"seq"`
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries   int
	TotalSize int64
	TotalHits int64
	AvgHits   float64
}

// Cache is a size-bounded store of synthesized audio keyed by a
// fingerprint of (text, voice, speed). A single mutex serializes index
// mutations; blob reads happen outside the lock since blob files are
// written atomically and never modified in place.
type Cache struct {
	dir     string
	maxSize int64

	mu        sync.Mutex
	index     map[string]Entry
	totalSize int64
	nextSeq   uint64
}

// Key returns the fingerprint for a synthesis triple. Identical inputs
// always map to the same key.
func Key(text, voice string, speed float64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%.2f", text, voice, speed))
	return hex.EncodeToString(sum[:])
}

// New opens (or creates) the cache rooted at dir with the given size
// budget in bytes. A missing or unreadable index is treated as empty.
func New(dir string, maxSize int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create cache directory: %w", err)
	}
	c := &Cache{
		dir:     dir,
		maxSize: maxSize,
		index:   make(map[string]Entry),
	}
	c.loadIndex()
	return c, nil
}

// Get returns the cached audio for the triple, or false on a miss. A hit
// bumps the entry's hit count. An index entry whose blob is missing or
// undersized is dropped and reported as a miss.
func (c *Cache) Get(text, voice string, speed float64) ([]byte, bool) {
	key := Key(text, voice, speed)

	c.mu.Lock()
	entry, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	entry.Hits++
	c.index[key] = entry
	c.persistIndex()
	c.mu.Unlock()

	audio, err := os.ReadFile(c.blobPath(key))
	if err == nil && len(audio) >= minBlobSize {
		return audio, true
	}
	if err != nil {
		log.Warn("audio cache: blob unreadable, dropping entry", "key", key[:12], "err", err)
	} else {
		log.Warn("audio cache: blob too small, dropping entry", "key", key[:12], "size", len(audio))
	}
	c.removeEntry(key)
	return nil, false
}

// Put stores audio for the triple, evicting least-used entries first so
// the cache stays within its budget. Failures are logged and absorbed.
func (c *Cache) Put(text, voice string, speed float64, audio []byte) {
	if len(audio) == 0 {
		return
	}
	key := Key(text, voice, speed)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.index[key]; ok {
		c.totalSize -= old.Size
		delete(c.index, key)
	}
	c.evictFor(int64(len(audio)))

	if err := writeFileAtomic(c.blobPath(key), audio); err != nil {
		log.Warn("audio cache: failed to write blob, skipping", "key", key[:12], "err", err)
		c.persistIndex()
		return
	}

	c.index[key] = Entry{
		TextPreview: preview(text),
		Voice:       voice,
		Speed:       speed,
		Size:        int64(len(audio)),
		Hits:        0,
		Seq:         c.nextSeq,
	}
	c.nextSeq++
	c.totalSize += int64(len(audio))
	c.persistIndex()
}

// Stats returns a snapshot of the cache contents.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:   len(c.index),
		TotalSize: c.totalSize,
	}
	for _, entry := range c.index {
		s.TotalHits += entry.Hits
	}
	if s.Entries > 0 {
		s.AvgHits = float64(s.TotalHits) / float64(s.Entries)
	}
	return s
}

// Clear deletes every blob and persists an empty index.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for key := range c.index {
		if err := os.Remove(c.blobPath(key)); err != nil && !os.IsNotExist(err) {
			log.Warn("audio cache: failed to remove blob", "key", key[:12], "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.index = make(map[string]Entry)
	c.totalSize = 0
	c.persistIndex()
	return firstErr
}

// evictFor removes lowest-hit entries (oldest inserted first on ties)
// until incoming bytes fit within the budget or the index is empty.
// Caller holds the mutex.
func (c *Cache) evictFor(incoming int64) {
	for c.totalSize+incoming > c.maxSize && len(c.index) > 0 {
		victim := ""
		for key, entry := range c.index {
			if victim == "" {
				victim = key
				continue
			}
			v := c.index[victim]
			if entry.Hits < v.Hits || (entry.Hits == v.Hits && entry.Seq < v.Seq) {
				victim = key
			}
		}
		if err := os.Remove(c.blobPath(victim)); err != nil && !os.IsNotExist(err) {
			log.Warn("audio cache: failed to remove evicted blob", "key", victim[:12], "err", err)
		}
		c.totalSize -= c.index[victim].Size
		delete(c.index, victim)
	}
}

// removeEntry drops a stale index entry and its blob.
func (c *Cache) removeEntry(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index[key]
	if !ok {
		return
	}
	c.totalSize -= entry.Size
	delete(c.index, key)
	if err := os.Remove(c.blobPath(key)); err != nil && !os.IsNotExist(err) {
		log.Warn("audio cache: failed to remove stale blob", "key", key[:12], "err", err)
	}
	c.persistIndex()
}

// loadIndex reads the persisted index. Any failure leaves the cache
// empty rather than failing the caller.
func (c *Cache) loadIndex() {
	data, err := os.ReadFile(filepath.Join(c.dir, indexFile))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("audio cache: index unreadable, starting empty", "err", err)
		}
		return
	}
	var index map[string]Entry
	if err := json.Unmarshal(data, &index); err != nil {
		log.Warn("audio cache: index corrupt, starting empty", "err", err)
		return
	}
	c.index = index
	for _, entry := range index {
		c.totalSize += entry.Size
		if entry.Seq >= c.nextSeq {
			c.nextSeq = entry.Seq + 1
		}
	}
}

// persistIndex writes the index to disk. Failures degrade to a warning;
// the in-memory index stays authoritative. Caller holds the mutex.
func (c *Cache) persistIndex() {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		log.Warn("audio cache: failed to encode index", "err", err)
		return
	}
	if err := writeFileAtomic(filepath.Join(c.dir, indexFile), data); err != nil {
		log.Warn("audio cache: failed to persist index", "err", err)
	}
}

func (c *Cache) blobPath(key string) string {
	return filepath.Join(c.dir, key+".wav")
}

// writeFileAtomic writes via a temp file and rename so readers never
// observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
