// Package metrics collects engine counters and reports them to Redis for
// the operations dashboard to read.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKey is the Redis key the engine reports under.
	MetricsKey = "metrics:alert-engine"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// EngineMetrics is the snapshot written to Redis.
type EngineMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"` // "healthy" or "unhealthy"

	// Counters (monotonically increasing since start)
	ScansCompleted       uint64 `json:"scans_completed"`
	EntitiesEvaluated    uint64 `json:"entities_evaluated"`
	AlertsCreated        uint64 `json:"alerts_created"`
	AlertsResolved       uint64 `json:"alerts_resolved"`
	RuleFailures         uint64 `json:"rule_failures"`
	TransitionsCommitted uint64 `json:"transitions_committed"`
	TransitionConflicts  uint64 `json:"transition_conflicts"`

	// AvgScanLatencyNs is the all-time average scan duration.
	AvgScanLatencyNs float64 `json:"avg_scan_latency_ns"`
}

// Collector collects engine counters and reports them periodically.
type Collector struct {
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	scansCompleted       atomic.Uint64
	entitiesEvaluated    atomic.Uint64
	alertsCreated        atomic.Uint64
	alertsResolved       atomic.Uint64
	ruleFailures         atomic.Uint64
	transitionsCommitted atomic.Uint64
	transitionConflicts  atomic.Uint64

	totalScanLatencyNs atomic.Uint64

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewCollector creates a collector. redisClient may be nil, in which case
// counters are kept in memory but never reported.
func NewCollector(redisClient *redis.Client) *Collector {
	return &Collector{
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordScan records a completed scan over n entities.
func (c *Collector) RecordScan(duration time.Duration, entities int) {
	c.scansCompleted.Add(1)
	c.entitiesEvaluated.Add(uint64(entities))
	c.totalScanLatencyNs.Add(uint64(duration.Nanoseconds()))
}

// RecordAlertCreated increments the alerts created counter.
func (c *Collector) RecordAlertCreated() {
	c.alertsCreated.Add(1)
}

// RecordAlertResolved increments the alerts resolved counter.
func (c *Collector) RecordAlertResolved() {
	c.alertsResolved.Add(1)
}

// RecordRuleFailure increments the rule failures counter.
func (c *Collector) RecordRuleFailure() {
	c.ruleFailures.Add(1)
}

// RecordTransition increments the committed transitions counter.
func (c *Collector) RecordTransition() {
	c.transitionsCommitted.Add(1)
}

// RecordConflict increments the transition conflicts counter.
func (c *Collector) RecordConflict() {
	c.transitionConflicts.Add(1)
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *EngineMetrics {
	now := time.Now().UTC()
	scans := c.scansCompleted.Load()

	var avgLatencyNs float64
	if scans > 0 {
		avgLatencyNs = float64(c.totalScanLatencyNs.Load()) / float64(scans)
	}

	return &EngineMetrics{
		ServiceName:          "alert-engine",
		StartedAt:            c.startedAt,
		LastUpdated:          now,
		Status:               "healthy",
		ScansCompleted:       scans,
		EntitiesEvaluated:    c.entitiesEvaluated.Load(),
		AlertsCreated:        c.alertsCreated.Load(),
		AlertsResolved:       c.alertsResolved.Load(),
		RuleFailures:         c.ruleFailures.Load(),
		TransitionsCommitted: c.transitionsCommitted.Load(),
		TransitionConflicts:  c.transitionConflicts.Load(),
		AvgScanLatencyNs:     avgLatencyNs,
	}
}

// writeMetrics writes current metrics to Redis.
func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snapshot := c.GetSnapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "error", err)
		return
	}

	if err := c.redis.Set(ctx, MetricsKey, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "key", MetricsKey)
}

// ConnectRedis creates and validates a Redis connection.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return client, nil
}
