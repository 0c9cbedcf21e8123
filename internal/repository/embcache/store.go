// Package embcache implements the persistent embedding cache: a
// content-addressed, TTL-expiring file store that deduplicates calls to the
// embedding provider. The cache is an optimization layer, never a source of
// truth — read failures degrade to misses and write failures are absorbed,
// except oversized entries which indicate caller misuse.
package embcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/solenne-labs/tendex/internal/domain"
)

// evictTargetRatio is the fraction of the max size the cache shrinks to on
// overflow, to avoid thrashing at the boundary.
const evictTargetRatio = 0.8

// wordTokenRatio is the conservative tokens-per-word estimate used for
// savings reporting.
const wordTokenRatio = 1.3

// Config holds cache store settings.
type Config struct {
	Dir             string
	TTL             time.Duration
	MaxSizeBytes    int64
	MaxEntryBytes   int64
	CostPer1KTokens float64
}

// Stats is a snapshot of cache performance counters. Ratios are derived on
// read, never stored.
type Stats struct {
	HitRate       float64
	TotalRequests int64
	Hits          int64
	Misses        int64
	Errors        int64
	SizeBytes     int64
	SavingsUSD    float64
}

// entry is the self-describing on-disk record for one cached embedding.
type entry struct {
	Text       string    `json:"text"`
	Model      string    `json:"model"`
	Embedding  []float32 `json:"embedding"`
	CreatedAt  time.Time `json:"created_at"`
	TextSHA256 string    `json:"text_sha256"`
	Dimensions int       `json:"dimensions"`
}

// Store is a file-backed embedding cache keyed by (normalized text, model).
// Writes to distinct keys touch distinct paths and need no cross-key locking.
type Store struct {
	dir        string
	ttl        time.Duration
	maxSize    int64
	maxEntry   int64
	costPer1K  float64
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.Mutex
	requests int64
	hits     int64
	misses   int64
	errors   int64
	savings  float64
}

// New creates the cache store, verifies the directory is writable, and
// evicts any entries that expired since the last run.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(cfg Config, cacheTotal *prometheus.CounterVec, logger *zap.Logger) (*Store, error) {
	s := &Store{
		dir:        cfg.Dir,
		ttl:        cfg.TTL,
		maxSize:    cfg.MaxSizeBytes,
		maxEntry:   cfg.MaxEntryBytes,
		costPer1K:  cfg.CostPer1KTokens,
		cacheTotal: cacheTotal,
		logger:     logger,
		now:        time.Now,
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, err
	}
	probe := filepath.Join(s.dir, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return nil, err
	}
	_ = os.Remove(probe)

	if removed := s.EvictExpired(); removed > 0 {
		logger.Info("Evicted expired cache entries at startup", zap.Int("removed", removed))
	}

	return s, nil
}

// Get returns the cached vector for (text, model), or false on any miss.
// Read errors, structural damage, model drift, checksum mismatch, and
// staleness all degrade to a miss; found-but-invalid entries are deleted.
func (s *Store) Get(text, model string) ([]float32, bool) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	path := s.entryPath(Key(text, model))

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.countError()
			s.logger.Warn("Failed to read cache entry", zap.String("path", path), zap.Error(err))
		}
		s.miss()
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		s.logger.Warn("Removing malformed cache entry", zap.String("path", path), zap.Error(err))
		_ = os.Remove(path)
		s.miss()
		return nil, false
	}

	if !s.valid(&e, text, model) {
		s.logger.Debug("Removing invalid cache entry",
			zap.String("path", path),
			zap.String("model", model),
			zap.Int("text_length", len(text)),
		)
		_ = os.Remove(path)
		s.miss()
		return nil, false
	}

	s.mu.Lock()
	s.hits++
	s.savings += s.estimateSavings(text)
	s.mu.Unlock()
	s.countCache("hit")

	return e.Embedding, true
}

// Set stores a vector under (text, model). Entries over the per-entry size
// ceiling fail with a CapacityError; all other write failures are logged
// and absorbed so they never fail the embedding call that triggered them.
func (s *Store) Set(text, model string, vec []float32) error {
	key := Key(text, model)

	data, err := json.Marshal(entry{
		Text:       text,
		Model:      model,
		Embedding:  vec,
		CreatedAt:  s.now(),
		TextSHA256: hashText(text),
		Dimensions: len(vec),
	})
	if err != nil {
		s.countError()
		s.logger.Error("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return nil
	}

	if s.maxEntry > 0 && int64(len(data)) > s.maxEntry {
		return &domain.CapacityError{Key: key, Size: int64(len(data)), Limit: s.maxEntry}
	}

	path := s.entryPath(key)
	if err := writeAtomic(path, data); err != nil {
		s.countError()
		s.logger.Warn("Failed to write cache entry", zap.String("path", path), zap.Error(err))
		return nil
	}

	if s.maxSize > 0 {
		if size := s.SizeBytes(); size > s.maxSize {
			target := int64(float64(s.maxSize) * evictTargetRatio)
			removed := s.evictToTarget(target)
			s.logger.Info("Cache size exceeded, evicted oldest entries",
				zap.Int64("size_bytes", size),
				zap.Int64("max_bytes", s.maxSize),
				zap.Int("removed", removed),
			)
		}
	}

	return nil
}

// EvictExpired removes all entries past their TTL and reports the count.
func (s *Store) EvictExpired() int {
	removed := 0
	for _, path := range s.entryPaths() {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil || s.expired(&e) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed
}

// Stats returns a snapshot of the performance counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		TotalRequests: s.requests,
		Hits:          s.hits,
		Misses:        s.misses,
		Errors:        s.errors,
		SavingsUSD:    s.savings,
	}
	s.mu.Unlock()

	if st.TotalRequests > 0 {
		st.HitRate = float64(st.Hits) / float64(st.TotalRequests)
	}
	st.SizeBytes = s.SizeBytes()
	return st
}

// Clear removes every entry and resets the counters.
func (s *Store) Clear() (removed int, freed int64, err error) {
	for _, path := range s.entryPaths() {
		info, statErr := os.Stat(path)
		if statErr != nil {
			continue
		}
		if os.Remove(path) == nil {
			removed++
			freed += info.Size()
		}
	}

	s.mu.Lock()
	s.requests, s.hits, s.misses, s.errors, s.savings = 0, 0, 0, 0, 0
	s.mu.Unlock()

	s.logger.Info("Cache cleared", zap.Int("removed", removed), zap.Int64("freed_bytes", freed))
	return removed, freed, nil
}

// SizeBytes returns the total size of all entries on disk.
func (s *Store) SizeBytes() int64 {
	var total int64
	for _, path := range s.entryPaths() {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

// Key derives the deterministic cache key for (text, model). Whitespace
// runs in the text are collapsed so formatting differences share an entry.
func Key(text, model string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	h := sha256.Sum256([]byte(normalized + "|" + model))
	return hex.EncodeToString(h[:])
}

// evictToTarget deletes entries oldest-first until total size is at or
// below target. The scan may race with concurrent writes; targets are
// approximate, not exact.
func (s *Store) evictToTarget(target int64) int {
	type aged struct {
		path      string
		createdAt time.Time
		size      int64
	}

	var entries []aged
	var total int64
	for _, path := range s.entryPaths() {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		createdAt := info.ModTime()
		if data, err := os.ReadFile(path); err == nil {
			var e entry
			if json.Unmarshal(data, &e) == nil && !e.CreatedAt.IsZero() {
				createdAt = e.CreatedAt
			}
		}
		entries = append(entries, aged{path: path, createdAt: createdAt, size: info.Size()})
		total += info.Size()
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].createdAt.Before(entries[j].createdAt)
	})

	removed := 0
	for _, e := range entries {
		if total <= target {
			break
		}
		if os.Remove(e.path) == nil {
			total -= e.size
			removed++
		}
	}
	return removed
}

func (s *Store) valid(e *entry, text, model string) bool {
	if s.expired(e) {
		return false
	}
	if e.Model != model {
		return false
	}
	if e.TextSHA256 != hashText(text) {
		return false
	}
	if len(e.Embedding) == 0 {
		return false
	}
	if e.Dimensions != len(e.Embedding) {
		return false
	}
	return true
}

func (s *Store) expired(e *entry) bool {
	if s.ttl <= 0 {
		return false
	}
	return !s.now().Before(e.CreatedAt.Add(s.ttl))
}

func (s *Store) estimateSavings(text string) float64 {
	tokens := float64(len(strings.Fields(text))) * wordTokenRatio
	return tokens / 1000 * s.costPer1K
}

func (s *Store) miss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
	s.countCache("miss")
}

func (s *Store) countError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

func (s *Store) countCache(result string) {
	if s.cacheTotal != nil {
		s.cacheTotal.WithLabelValues(result).Inc()
	}
}

// entryPath shards entries into subdirectories by digest prefix to bound
// directory fan-out.
func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, key[:2], key+".json")
}

func (s *Store) entryPaths() []string {
	var paths []string
	_ = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}

func hashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// writeAtomic writes data via a temp file and rename so concurrent readers
// never observe a partial entry.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
