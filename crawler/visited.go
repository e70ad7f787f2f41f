package crawler

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// VisitedSet is the authoritative concurrent set of normalized URLs a crawl
// has admitted. It is the source of truth for visited-membership decisions
// and for checkpoint snapshot/restore; unlike BloomPrefilter it never
// produces a false positive, since the checkpoint round-trip law (load(save(s))
// == s) requires an exact, enumerable membership test.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewVisitedSet returns an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// Contains reports whether url has already been admitted.
func (v *VisitedSet) Contains(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.seen[url]
	return ok
}

// VisitIfNew atomically checks membership and inserts url if absent.
// Returns true if url was new.
func (v *VisitedSet) VisitIfNew(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[url]; ok {
		return false
	}
	v.seen[url] = struct{}{}
	return true
}

// Len returns the number of visited URLs.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

// Snapshot returns a copy of the visited URLs, suitable for checkpointing.
func (v *VisitedSet) Snapshot() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.seen))
	for u := range v.seen {
		out = append(out, u)
	}
	return out
}

// Restore replaces the set's contents with urls, used when resuming from a
// checkpoint. It does not merge; callers restore into a freshly constructed set.
func (v *VisitedSet) Restore(urls []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seen = make(map[string]struct{}, len(urls))
	for _, u := range urls {
		v.seen[u] = struct{}{}
	}
}

// BloomPrefilter is a disk-backed bloom filter used as a fast, constant-memory
// pre-check ahead of the authoritative VisitedSet. It uses a memory-mapped file
// so its footprint stays flat regardless of crawl size, targeting 100,000+ URLs
// at a 0.1% false-positive rate. It is NOT authoritative: a positive test here
// only means "probably visited, confirm against VisitedSet"; it is never
// consulted on its own to make an admission decision.
type BloomPrefilter struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	file      *os.File
	mmap      mmap.MMap
	tmpPath   string
	count     uint64
	syncEvery uint64
	lastErr   error
}

// NewBloomPrefilter creates a new disk-backed pre-filter, memory-mapping a
// temp file in the OS temp directory.
func NewBloomPrefilter() (*BloomPrefilter, error) {
	filter := bloom.NewWithEstimates(100000, 0.001)

	tmpDir := os.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "webreach-visited-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	filterSize := filter.Cap()
	if err := tmpFile.Truncate(int64(filterSize)); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("truncate temp file: %w", err)
	}

	mapped, err := mmap.MapRegion(tmpFile, int(filterSize), mmap.RDWR, 0, 0)
	if err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("mmap temp file: %w", err)
	}

	data, err := filter.MarshalBinary()
	if err != nil {
		_ = mapped.Unmap()
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}

	if len(data) > len(mapped) {
		_ = mapped.Unmap()
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("filter data (%d) exceeds mmap size (%d)", len(data), len(mapped))
	}
	copy(mapped, data)

	return &BloomPrefilter{
		filter:    filter,
		file:      tmpFile,
		mmap:      mapped,
		tmpPath:   tmpPath,
		syncEvery: 1000,
	}, nil
}

// MightContain reports whether url has probably been seen before. False
// means definitely not seen; true means check the authoritative VisitedSet.
func (b *BloomPrefilter) MightContain(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter.TestString(url)
}

// Add records url in the pre-filter.
func (b *BloomPrefilter) Add(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.filter.AddString(url)
	b.count++

	if b.count >= b.syncEvery {
		if err := b.syncLocked(); err != nil {
			b.lastErr = err
		}
	}
}

func (b *BloomPrefilter) syncLocked() error {
	data, err := b.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}

	if len(data) <= len(b.mmap) {
		copy(b.mmap, data)
	}

	if flushErr := b.mmap.Flush(); flushErr != nil {
		return fmt.Errorf("flush mmap: %w", flushErr)
	}
	b.count = 0
	return nil
}

// Close syncs any pending data and releases the mmap'd temp file.
func (b *BloomPrefilter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error

	if b.lastErr != nil {
		errs = append(errs, b.lastErr)
	}

	if b.mmap != nil {
		if b.count > 0 {
			if syncErr := b.syncLocked(); syncErr != nil {
				errs = append(errs, syncErr)
			}
		}
		if err := b.mmap.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		b.mmap = nil
	}

	if b.file != nil {
		if err := b.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		b.file = nil
	}

	if b.tmpPath != "" {
		if err := os.Remove(b.tmpPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove temp file: %w", err))
		}
		b.tmpPath = ""
	}

	if len(errs) > 0 {
		return fmt.Errorf("close bloom prefilter: %w", errors.Join(errs...))
	}

	return nil
}

// LastError returns the last error encountered during a periodic disk sync.
func (b *BloomPrefilter) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}
