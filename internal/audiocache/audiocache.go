// Package audiocache implements the bounded-LRU AudioCache described in
// spec.md section 4.1: source-path -> immutable PCM, background eviction
// requests with an inline single-pass eviction algorithm, and a
// parallel-preload entry point.
package audiocache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reelforge/engine/internal/pcm"
	"github.com/reelforge/engine/internal/rflog"
)

// DefaultMaxBytes is the default resident-byte bound (512 MiB).
const DefaultMaxBytes int64 = 512 * 1024 * 1024

// MinCacheFiles is the floor below which eviction will not shrink the
// cache, even if that means staying over the byte bound.
const MinCacheFiles = 4

type entry struct {
	audio      *pcm.ImportedAudio
	lastAccess uint64
	size       int64
}

// evictionCommand is posted to the background worker. The worker's only job
// is to keep the channel itself from filling — per spec.md 4.1 and
// DESIGN.md, the actual eviction pass below runs inline in the calling
// goroutine for correctness.
type evictionCommand struct {
	reason string
}

// Cache is the AudioCache. Zero value is not usable; construct with New.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	maxBytes     atomic.Int64
	residentByte atomic.Int64
	accessClock  atomic.Uint64

	evictCh chan evictionCommand
	closeCh chan struct{}
	closed  atomic.Bool

	log interface {
		Warnf(format string, args ...any)
	}
}

// New constructs a Cache with the default 512 MiB bound and starts its
// background eviction worker.
func New() *Cache {
	return WithMaxSize(DefaultMaxBytes)
}

// WithMaxSize constructs a Cache bounded at maxBytes.
func WithMaxSize(maxBytes int64) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		evictCh: make(chan evictionCommand, 64),
		closeCh: make(chan struct{}),
	}
	c.maxBytes.Store(maxBytes)
	c.log = rflog.With("audiocache")
	go c.evictionWorker()
	return c
}

// Close stops the background eviction worker. Safe to call more than once.
func (c *Cache) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.closeCh)
	}
}

// evictionWorker only drains the command channel so posting to it never
// blocks a UI thread; it performs no eviction itself (see DESIGN.md).
func (c *Cache) evictionWorker() {
	for {
		select {
		case <-c.evictCh:
			// Deliberately a no-op: eviction already ran inline by the
			// poster. This goroutine exists purely to keep evictCh
			// non-blocking and to leave room for a future deferred
			// eviction policy without changing the API.
		case <-c.closeCh:
			return
		}
	}
}

// Load returns the cached entry for path (bumping its LRU stamp), or
// synchronously decodes it from disk, inserts it, possibly evicts, and
// returns it. Returns (nil, false) if decoding fails; the failure is
// logged and the caller is expected to silently skip the corresponding
// clip/voice render per spec.md section 7.
func (c *Cache) Load(path string) (*pcm.ImportedAudio, bool) {
	if a, ok := c.Get(path); ok {
		return a, true
	}

	audio, err := pcm.Load(path)
	if err != nil {
		c.log.Warnf("load failed for %q: %v", path, err)
		return nil, false
	}
	c.Insert(path, audio)
	return audio, true
}

// Peek returns the cached entry without updating its LRU stamp.
func (c *Cache) Peek(path string) (*pcm.ImportedAudio, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	return e.audio, true
}

// Get returns the cached entry, updating its LRU stamp.
func (c *Cache) Get(path string) (*pcm.ImportedAudio, bool) {
	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.lastAccess = c.accessClock.Add(1)
	return e.audio, true
}

// TryGet is the audio-thread-safe variant of Get: a try-locked read that
// returns ok=false on contention instead of blocking, per spec.md 5's "no
// blocking lock acquisition on the audio thread" invariant. The caller
// must treat a false ok as "skip this clip for this block", not an error.
func (c *Cache) TryGet(path string) (*pcm.ImportedAudio, bool) {
	if !c.mu.TryRLock() {
		return nil, false
	}
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.lastAccess = c.accessClock.Add(1)
	return e.audio, true
}

// Touch bumps path's LRU stamp without returning the audio.
func (c *Cache) Touch(path string) {
	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if ok {
		e.lastAccess = c.accessClock.Add(1)
	}
}

// Insert adds audio under path, bypassing disk, possibly evicting to stay
// within the byte bound afterwards.
func (c *Cache) Insert(path string, audio *pcm.ImportedAudio) {
	size := audio.SizeBytes()

	c.mu.Lock()
	if old, ok := c.entries[path]; ok {
		c.residentByte.Add(-old.size)
	}
	c.entries[path] = &entry{
		audio:      audio,
		lastAccess: c.accessClock.Add(1),
		size:       size,
	}
	c.residentByte.Add(size)
	c.mu.Unlock()

	c.evictIfNeeded()
}

// Unload drops path from the cache entirely.
func (c *Cache) Unload(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		c.residentByte.Add(-e.size)
		delete(c.entries, path)
	}
}

// Clear removes every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.residentByte.Store(0)
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// MemoryUsage returns total resident bytes across all cached entries.
func (c *Cache) MemoryUsage() int64 { return c.residentByte.Load() }

// MaxSize returns the configured byte bound.
func (c *Cache) MaxSize() int64 { return c.maxBytes.Load() }

// SetMaxSize updates the byte bound, triggering eviction if now over.
func (c *Cache) SetMaxSize(maxBytes int64) {
	c.maxBytes.Store(maxBytes)
	c.evictIfNeeded()
}

// Utilization returns MemoryUsage/MaxSize in [0, +inf).
func (c *Cache) Utilization() float64 {
	max := c.maxBytes.Load()
	if max <= 0 {
		return 0
	}
	return float64(c.residentByte.Load()) / float64(max)
}

// CachedFiles returns the set of currently cached paths.
func (c *Cache) CachedFiles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for p := range c.entries {
		out = append(out, p)
	}
	return out
}

// evictIfNeeded posts an (ignored, see evictionWorker) notification and
// then runs the real single-pass LRU eviction inline, per spec.md 4.1's
// documented policy: collect (last_access, size) pairs, sort ascending by
// access time, find the lowest threshold such that removing everything at
// or below it brings resident bytes at-or-below the bound while leaving at
// least MinCacheFiles entries, then remove them in one pass.
func (c *Cache) evictIfNeeded() {
	select {
	case c.evictCh <- evictionCommand{reason: "admission"}:
	default:
		// Channel full: the worker is behind, but eviction itself still
		// runs inline below, so correctness is unaffected.
	}

	max := c.maxBytes.Load()
	if c.residentByte.Load() <= max {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) <= MinCacheFiles {
		return
	}

	type stamped struct {
		path       string
		lastAccess uint64
		size       int64
	}
	all := make([]stamped, 0, len(c.entries))
	var total int64
	for p, e := range c.entries {
		all = append(all, stamped{p, e.lastAccess, e.size})
		total += e.size
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lastAccess < all[j].lastAccess })

	keepCount := len(all)
	runningTotal := total
	threshold := -1 // index into all; evict all[0..=threshold]

	for i := 0; i < len(all); i++ {
		if keepCount-1 < MinCacheFiles {
			break
		}
		if runningTotal <= max {
			break
		}
		runningTotal -= all[i].size
		keepCount--
		threshold = i
	}

	if threshold < 0 {
		return
	}

	for i := 0; i <= threshold; i++ {
		delete(c.entries, all[i].path)
	}
	c.residentByte.Store(runningTotal)
}

// PreloadResult summarizes a parallel preload batch.
type PreloadResult struct {
	Total         int
	Loaded        int
	AlreadyCached int
	Failed        int
	DurationMS    int64
}

// PreloadPathsParallel decodes every uncached path concurrently (one
// goroutine per path, bounded by a simple semaphore so a huge batch does
// not fork thousands of goroutines at once), then inserts results
// sequentially under the cache's lock.
func (c *Cache) PreloadPathsParallel(paths []string) PreloadResult {
	start := time.Now()
	result := PreloadResult{Total: len(paths)}

	type outcome struct {
		path  string
		audio *pcm.ImportedAudio
		err   error
	}

	toLoad := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := c.Peek(p); ok {
			result.AlreadyCached++
			continue
		}
		toLoad = append(toLoad, p)
	}

	const maxConcurrency = 8
	sem := make(chan struct{}, maxConcurrency)
	outcomes := make(chan outcome, len(toLoad))
	var wg sync.WaitGroup

	for _, p := range toLoad {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			audio, err := pcm.Load(path)
			outcomes <- outcome{path: path, audio: audio, err: err}
		}(p)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for o := range outcomes {
		if o.err != nil {
			c.log.Warnf("preload failed for %q: %v", o.path, o.err)
			result.Failed++
			continue
		}
		c.Insert(o.path, o.audio)
		result.Loaded++
	}

	result.DurationMS = time.Since(start).Milliseconds()
	return result
}

// AllCached reports whether every path in paths is currently resident.
func (c *Cache) AllCached(paths []string) bool {
	for _, p := range paths {
		if _, ok := c.Peek(p); !ok {
			return false
		}
	}
	return true
}
