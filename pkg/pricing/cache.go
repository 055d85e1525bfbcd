package pricing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opscart/region-cost-planner/pkg/logging"
	"github.com/opscart/region-cost-planner/pkg/models"
)

// DefaultCacheTTL is how long a cached price stays valid
const DefaultCacheTTL = time.Hour

// CacheOptions configures a PriceCache
type CacheOptions struct {
	File     string
	TTL      time.Duration
	Disabled bool
	Logger   *zap.Logger
}

// DefaultCacheOptions places the cache file under the user cache directory.
func DefaultCacheOptions() CacheOptions {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return CacheOptions{
		File: filepath.Join(dir, "region-cost-planner", "pricing-cache.json"),
		TTL:  DefaultCacheTTL,
	}
}

// PriceCache caches pricing data to reduce API calls. Entries are persisted
// to a JSON file on Save and expire lazily on lookup.
type PriceCache struct {
	file     string
	ttl      time.Duration
	disabled bool
	data     map[string]*cacheEntry
	dirty    bool
	mutex    sync.RWMutex
	now      func() time.Time
	logger   *zap.Logger
}

type cacheEntry struct {
	Price     float64                `json:"price"`
	Records   []models.PricingRecord `json:"records,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// NewPriceCache creates a cache and loads opts.File unless disabled. A
// missing or corrupt file yields an empty cache.
func NewPriceCache(opts CacheOptions) *PriceCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	c := &PriceCache{
		file:     opts.File,
		ttl:      opts.TTL,
		disabled: opts.Disabled,
		data:     make(map[string]*cacheEntry),
		now:      time.Now,
		logger:   logging.Named(opts.Logger, "price-cache"),
	}
	if !c.disabled && c.file != "" {
		c.load()
	}
	return c
}

func (c *PriceCache) load() {
	raw, err := os.ReadFile(c.file)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Debug("cache file unreadable, starting empty", zap.String("file", c.file), zap.Error(err))
		}
		return
	}

	var data map[string]*cacheEntry
	if err := json.Unmarshal(raw, &data); err != nil {
		c.logger.Debug("cache file corrupt, starting empty", zap.String("file", c.file), zap.Error(err))
		return
	}
	for k, v := range data {
		if v != nil {
			c.data[k] = v
		}
	}
}

func (c *PriceCache) lookup(key string) (*cacheEntry, bool) {
	if c.disabled {
		return nil, false
	}

	c.mutex.RLock()
	entry, exists := c.data[key]
	c.mutex.RUnlock()
	if !exists {
		return nil, false
	}

	if c.now().UnixMilli()-entry.Timestamp > c.ttl.Milliseconds() {
		c.mutex.Lock()
		// Another caller may have refreshed the key meanwhile
		if cur, ok := c.data[key]; ok && cur == entry {
			delete(c.data, key)
			c.dirty = true
		}
		c.mutex.Unlock()
		return nil, false
	}
	return entry, true
}

// Get returns the cached price for key.
func (c *PriceCache) Get(key string) (float64, bool) {
	entry, ok := c.lookup(key)
	if !ok {
		return 0, false
	}
	return entry.Price, true
}

// GetRecords returns the cached record list for key.
func (c *PriceCache) GetRecords(key string) ([]models.PricingRecord, bool) {
	entry, ok := c.lookup(key)
	if !ok || entry.Records == nil {
		return nil, false
	}
	out := make([]models.PricingRecord, len(entry.Records))
	copy(out, entry.Records)
	return out, true
}

// Set stores price under key.
func (c *PriceCache) Set(key string, price float64) {
	c.put(key, &cacheEntry{Price: price})
}

// SetRecords stores a normalized record list under key. The entry price is
// the first record's hourly price.
func (c *PriceCache) SetRecords(key string, records []models.PricingRecord) {
	entry := &cacheEntry{Records: make([]models.PricingRecord, len(records))}
	copy(entry.Records, records)
	if len(records) > 0 {
		entry.Price = records[0].PricePerHour
	}
	c.put(key, entry)
}

func (c *PriceCache) put(key string, entry *cacheEntry) {
	if c.disabled {
		return
	}
	entry.Timestamp = c.now().UnixMilli()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[key] = entry
	c.dirty = true
}

// Save writes the cache to its file when it changed since the last save.
// Write failures are logged and otherwise ignored; the in-memory cache stays
// valid.
func (c *PriceCache) Save() {
	if c.disabled || c.file == "" {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.dirty {
		return
	}

	raw, err := json.Marshal(c.data)
	if err != nil {
		c.logger.Debug("failed to encode price cache", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.file), 0755); err != nil {
		c.logger.Debug("failed to create cache directory", zap.String("file", c.file), zap.Error(err))
		return
	}
	if err := os.WriteFile(c.file, raw, 0644); err != nil {
		c.logger.Debug("failed to write price cache", zap.String("file", c.file), zap.Error(err))
		return
	}
	c.dirty = false
}

// Clear empties the in-memory cache. The file changes on the next Save.
func (c *PriceCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*cacheEntry)
	c.dirty = true
}

// Len returns the number of entries, expired or not.
func (c *PriceCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// File returns the backing file path.
func (c *PriceCache) File() string {
	return c.file
}

var (
	shared   *PriceCache
	sharedMu sync.Mutex
)

// SharedCache returns the process-wide cache, creating it from
// DefaultCacheOptions on first use.
func SharedCache() *PriceCache {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		shared = NewPriceCache(DefaultCacheOptions())
	}
	return shared
}

// SetSharedCache replaces the process-wide cache. Passing nil resets it so
// the next SharedCache call recreates the default.
func SetSharedCache(c *PriceCache) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = c
}
