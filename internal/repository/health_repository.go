package repository

import (
	"context"
	"fmt"
	"strconv"
)

// HealthRepository reads the shared gauges and counters the enrichment
// worker and the ingestion gate publish into the key-value store
type HealthRepository struct {
	kv KV
}

// NewHealthRepository creates a new health repository
func NewHealthRepository(kv KV) *HealthRepository {
	return &HealthRepository{kv: kv}
}

// StreamHealth is the worker-published stream state
type StreamHealth struct {
	EventTimeLagSeconds      float64
	ProcessingTimeLagSeconds float64
	HotStoreWriteFailures    int64
}

// StreamHealth reads the current stream gauges
func (r *HealthRepository) StreamHealth(ctx context.Context) (StreamHealth, error) {
	var h StreamHealth
	var err error
	if h.EventTimeLagSeconds, err = GetFloat(ctx, r.kv, keyStreamLag); err != nil {
		return h, fmt.Errorf("failed to read stream lag: %w", err)
	}
	if h.ProcessingTimeLagSeconds, err = GetFloat(ctx, r.kv, keyProcessingLag); err != nil {
		return h, fmt.Errorf("failed to read processing lag: %w", err)
	}
	if h.HotStoreWriteFailures, err = GetInt(ctx, r.kv, keyHotStoreFailures); err != nil {
		return h, fmt.Errorf("failed to read hot store failures: %w", err)
	}
	return h, nil
}

// PublishStreamHealth is the worker's side of the gauge contract
func (r *HealthRepository) PublishStreamHealth(ctx context.Context, h StreamHealth) error {
	if err := r.kv.Set(ctx, keyStreamLag, strconv.FormatFloat(h.EventTimeLagSeconds, 'f', -1, 64), 0); err != nil {
		return err
	}
	if err := r.kv.Set(ctx, keyProcessingLag, strconv.FormatFloat(h.ProcessingTimeLagSeconds, 'f', -1, 64), 0); err != nil {
		return err
	}
	return r.kv.Set(ctx, keyHotStoreFailures, strconv.FormatInt(h.HotStoreWriteFailures, 10), 0)
}

// HotStoreWatermark is the failure total seen by the previous detection run.
// A single global value; concurrent detectors may double- or under-count.
func (r *HealthRepository) HotStoreWatermark(ctx context.Context) (int64, bool, error) {
	raw, ok, err := r.kv.Get(ctx, keyHotStoreWatermark)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetHotStoreWatermark records the failure total seen by this detection run
func (r *HealthRepository) SetHotStoreWatermark(ctx context.Context, total int64) error {
	return r.kv.Set(ctx, keyHotStoreWatermark, strconv.FormatInt(total, 10), 0)
}

// ETAError returns the running absolute ETA error sum (seconds) and sample count
func (r *HealthRepository) ETAError(ctx context.Context) (float64, int64, error) {
	sum, err := GetFloat(ctx, r.kv, keyETAAbsErrorSum)
	if err != nil {
		return 0, 0, err
	}
	count, err := GetInt(ctx, r.kv, keyETAErrorCount)
	if err != nil {
		return 0, 0, err
	}
	return sum, count, nil
}

// PublishETAError is the worker's side of the ETA error contract
func (r *HealthRepository) PublishETAError(ctx context.Context, sumSeconds float64, count int64) error {
	if err := r.kv.Set(ctx, keyETAAbsErrorSum, strconv.FormatFloat(sumSeconds, 'f', -1, 64), 0); err != nil {
		return err
	}
	return r.kv.Set(ctx, keyETAErrorCount, strconv.FormatInt(count, 10), 0)
}

// IncrIngestCounter bumps a shared ingestion funnel counter
func (r *HealthRepository) IncrIngestCounter(ctx context.Context, outcome string) error {
	_, _, err := r.kv.IncrBy(ctx, keyIngest+outcome, 1, 0)
	return err
}

// IngestCounters reads the shared ingestion funnel counters
func (r *HealthRepository) IngestCounters(ctx context.Context, outcomes []string) (map[string]int64, error) {
	out := make(map[string]int64, len(outcomes))
	for _, o := range outcomes {
		n, err := GetInt(ctx, r.kv, keyIngest+o)
		if err != nil {
			return nil, err
		}
		out[o] = n
	}
	return out, nil
}
