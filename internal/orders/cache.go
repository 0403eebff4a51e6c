package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL bounds how long a load is served before the source is read again.
const DefaultCacheTTL = 10 * time.Minute

// loadTimeout bounds a shared load, which outlives the request that started it.
const loadTimeout = 2 * time.Minute

// Snapshot is the result of one successful load. It is never mutated after publication.
type Snapshot struct {
	Table    string               `json:"table"`
	Records  []domain.OrderRecord `json:"-"`
	Issues   []RowIssue           `json:"issues"`
	LoadedAt time.Time            `json:"loadedAt"`
}

// Count returns the number of projected records.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Cache serves the last successful load of a source and replaces it wholesale on reload.
type Cache struct {
	source  datasource.Source
	mapping Mapping
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Registry
	now     func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewCache creates a cache over source. A non-positive ttl uses DefaultCacheTTL.
func NewCache(source datasource.Source, mapping Mapping, ttl time.Duration, logger *zap.Logger, reg *metrics.Registry) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source:  source,
		mapping: mapping,
		ttl:     ttl,
		logger:  logger,
		metrics: reg,
		now:     time.Now,
	}
}

// Snapshot returns the cached load, loading first when nothing is cached or it has expired.
// When a refresh of an expired snapshot fails the stale snapshot is served and the next
// call retries. An error is returned only when nothing has ever loaded.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	current := c.snapshot
	c.mu.RUnlock()

	if current != nil && c.now().Sub(current.LoadedAt) < c.ttl {
		return current, nil
	}
	snapshot, err := c.load(ctx)
	if err != nil && current != nil {
		c.logger.Warn("serving stale orders after failed refresh",
			zap.Time("loaded_at", current.LoadedAt),
			zap.Error(err),
		)
		return current, nil
	}
	return snapshot, err
}

// Reload discards the cached load and reads the source again. On failure the previous
// snapshot remains authoritative.
func (c *Cache) Reload(ctx context.Context) (*Snapshot, error) {
	return c.load(ctx)
}

// Current returns the cached snapshot without loading.
func (c *Cache) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	result, err, _ := c.group.Do("load", func() (any, error) {
		// Coalesced callers must not fail because the first one went away.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return c.loadOnce(loadCtx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Snapshot), nil
}

func (c *Cache) loadOnce(ctx context.Context) (*Snapshot, error) {
	start := c.now()
	snapshot, err := Load(ctx, c.source, c.mapping)
	if c.metrics != nil {
		c.metrics.Loads.Inc()
		c.metrics.LoadDurationSec.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.LoadFailures.Inc()
		}
		c.logger.Error("order load failed", zap.Error(err))
		return nil, err
	}
	snapshot.LoadedAt = c.now()

	for _, issue := range snapshot.Issues {
		c.logger.Warn("skipped order row", zap.Int("row", issue.RowNumber), zap.String("reason", issue.Message))
	}
	if c.metrics != nil {
		c.metrics.RowsSkipped.Add(float64(len(snapshot.Issues)))
		c.metrics.RecordsLoaded.Set(float64(len(snapshot.Records)))
	}
	c.logger.Info("orders loaded",
		zap.String("table", snapshot.Table),
		zap.Int("records", len(snapshot.Records)),
		zap.Int("skipped", len(snapshot.Issues)),
	)

	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()
	return snapshot, nil
}

// Load reads every row from source and projects it. Header validation failures are load
// failures; single bad rows are reported as issues.
func Load(ctx context.Context, source datasource.Source, mapping Mapping) (*Snapshot, error) {
	table, err := source.LoadRows(ctx)
	if err != nil {
		if errors.Is(err, datasource.ErrLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", datasource.ErrLoad, err)
	}

	layout, err := mapping.Resolve(table.Headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", datasource.ErrLoad, table.Name, err)
	}

	records, issues := ProjectAll(table.Rows, layout)
	return &Snapshot{
		Table:   table.Name,
		Records: records,
		Issues:  issues,
	}, nil
}
