package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Persisted key schema. Every instance reads and writes these names.
const (
	keyIncident      = "incident:"
	keyIncidentIndex = "incidents:index"

	keyEscalationDedup    = "escalation:dedup:"
	keyEscalationSuppress = "escalation:suppress:"
	keyEscalationLastRun  = "escalation:last_run"

	keyPolicy        = "oncall:policy:"
	keyPolicyIndex   = "oncall:policies"
	keySchedule      = "oncall:schedule:"
	keyScheduleIndex = "oncall:schedules"

	keyTimelineEntry = "timeline:entry:"
	keyTimeline      = "timeline:"

	keySLOSnapshot = "slo:snapshot:"
	keySLOIndex    = "slo:snapshots"

	keyInsight      = "learning:insight:"
	keyInsightIndex = "learning:index:"

	keyKillSwitchMode        = "killswitch:mode"
	keyKillSwitchAudit       = "killswitch:audit"
	keyKillSwitchActivations = "killswitch:activations:"

	keyLastSeq = "ingest:lastseq:"
	keyIngest  = "ingest:count:"

	keyProjection   = "tracking:projection:"
	keyActiveOrders = "tracking:active_orders"

	keyStreamLag         = "health:stream_lag_seconds"
	keyProcessingLag     = "health:processing_lag_seconds"
	keyHotStoreFailures  = "health:hot_store_write_failures"
	keyHotStoreWatermark = "detector:watermark:hot_store_write_failures"
	keyETAAbsErrorSum    = "eta:abs_error_sum_seconds"
	keyETAErrorCount     = "eta:error_count"

	keyRateLimit = "ratelimit:"
)

// getJSON loads and decodes a record. Absent keys and undecodable values
// both come back as nil; corrupt reports the latter. Only store failures are errors.
func getJSON[T any](ctx context.Context, kv KV, key string) (v *T, corrupt bool, err error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, true, nil
	}
	return &out, false, nil
}

func putJSON(ctx context.Context, kv KV, key string, v any, ttl time.Duration) error {
	raw, err := encodeJSON(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, raw, ttl)
}

func decodeJSON(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func unixKey(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// RateLimitKey is the counter key of one rate limit bucket
func RateLimitKey(scope, key string) string {
	return keyRateLimit + scope + ":" + key
}
