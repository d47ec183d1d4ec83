package models

import "time"

// LocationSample represents one rider location report as received by the ingestion gate
type LocationSample struct {
	RiderID          string    `json:"riderId"`
	OrderID          string    `json:"orderId"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	AccuracyMeters   float64   `json:"accuracyM"`
	SpeedMps         *float64  `json:"speedMps,omitempty"`
	HeadingDeg       *float64  `json:"headingDeg,omitempty"`
	DeviceTimestamp  time.Time `json:"deviceTimestamp"`
	ServerReceivedAt time.Time `json:"serverReceivedAt"`
	Seq              int64     `json:"seq"` // Monotonic per (riderId, orderId)
}

// LocationRequest is the wire shape of POST /api/v1/tracking/location.
// Pointer fields distinguish "missing" from zero values.
type LocationRequest struct {
	RiderID         string   `json:"riderId"`
	OrderID         string   `json:"orderId"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	AccuracyM       *float64 `json:"accuracyM"`
	SpeedMps        *float64 `json:"speedMps"`
	HeadingDeg      *float64 `json:"headingDeg"`
	DeviceTimestamp string   `json:"deviceTimestamp"`
	Seq             *int64   `json:"seq"`
}

// IngestStatus is the outcome reported back to the rider device
type IngestStatus string

const (
	IngestAccepted    IngestStatus = "accepted"
	IngestDeduped     IngestStatus = "deduped"
	IngestRejected    IngestStatus = "rejected"
	IngestRateLimited IngestStatus = "rate_limited"
	IngestDisabled    IngestStatus = "tracking_disabled"
	IngestPublishFail IngestStatus = "stream_publish_failed"
	IngestStoreFail   IngestStatus = "store_failure"
)

// RejectReason is the typed reason attached to a rejected sample
type RejectReason string

const (
	RejectKillSwitchOff   RejectReason = "kill_switch_off"
	RejectMissingRiderID  RejectReason = "missing_rider_id"
	RejectMissingOrderID  RejectReason = "missing_order_id"
	RejectRiderMismatch   RejectReason = "rider_mismatch"
	RejectMissingCoords   RejectReason = "missing_coordinates"
	RejectInvalidLat      RejectReason = "invalid_lat"
	RejectInvalidLng      RejectReason = "invalid_lng"
	RejectMissingAccuracy RejectReason = "missing_accuracy"
	RejectInvalidAccuracy RejectReason = "invalid_accuracy"
	RejectInvalidSpeed    RejectReason = "invalid_speed"
	RejectInvalidHeading  RejectReason = "invalid_heading"
	RejectInvalidTime     RejectReason = "invalid_device_timestamp"
	RejectMissingSeq      RejectReason = "missing_seq"
	RejectInvalidSeq      RejectReason = "invalid_seq"
	RejectMalformedBody   RejectReason = "malformed_body"
)

// IngestResult is what the gate decided for one sample
type IngestResult struct {
	Status     IngestStatus  `json:"status"`
	Reason     RejectReason  `json:"reason,omitempty"`
	RetryAfter time.Duration `json:"-"`
}
