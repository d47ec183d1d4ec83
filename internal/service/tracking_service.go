package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/fingerprint"
	"github.com/jengzang/tracking-ops-backend/internal/metrics"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
	"github.com/jengzang/tracking-ops-backend/internal/spatial"
	"github.com/jengzang/tracking-ops-backend/internal/tracking"
)

const (
	defaultScanLimit   = 5000
	defaultActiveLimit = 500
)

// FleetOverview is the fleet-wide freshness and SLA-risk summary
type FleetOverview struct {
	GeneratedAt    time.Time                     `json:"generatedAt"`
	KillSwitchMode models.KillSwitchMode         `json:"killSwitchMode"`
	Projections    int                           `json:"projections"`
	Freshness      map[models.FreshnessState]int `json:"freshness"`
	SLARisk        map[models.SLARiskLevel]int   `json:"slaRisk"`
}

// ActiveOrder is one row of the ops active list. Ages are left to the
// client so the validator only changes with the content.
type ActiveOrder struct {
	OrderID         string                `json:"orderId"`
	RiderID         string                `json:"riderId"`
	FreshnessState  models.FreshnessState `json:"freshnessState"`
	LastUpdatedAt   string                `json:"lastUpdatedAt"`
	InternalState   string                `json:"internalState,omitempty"`
	CheckpointState string                `json:"checkpointState,omitempty"`
	SLARiskLevel    models.SLARiskLevel   `json:"slaRiskLevel,omitempty"`
	ETAP90          *time.Time            `json:"etaP90,omitempty"`
}

// ActiveOrders is the ops active list
type ActiveOrders struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Total       int           `json:"total"`
	Orders      []ActiveOrder `json:"orders"`
}

// RiskOrder is one at-risk order inside a region
type RiskOrder struct {
	OrderID      string              `json:"orderId"`
	RiderID      string              `json:"riderId"`
	SLARiskLevel models.SLARiskLevel `json:"slaRiskLevel"`
	Reasons      []string            `json:"reasons,omitempty"`
}

// RiskRegion groups at-risk orders by coarse s2 region
type RiskRegion struct {
	Region string      `json:"region"`
	High   int         `json:"high"`
	Medium int         `json:"medium"`
	Orders []RiskOrder `json:"orders"`
}

// RiskOverview is the fleet SLA-risk breakdown
type RiskOverview struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	High        int          `json:"high"`
	Medium      int          `json:"medium"`
	Regions     []RiskRegion `json:"regions"`
}

// TrackingService serves projection reads for customers and ops
type TrackingService struct {
	projections *repository.ProjectionRepository
	orders      *repository.OrderRepository
	killSwitch  ModeReader
	thresholds  tracking.Thresholds
	metrics     *metrics.Metrics
	now         func() time.Time
	scanLimit   int
}

// NewTrackingService creates a new tracking service
func NewTrackingService(projections *repository.ProjectionRepository, orders *repository.OrderRepository, killSwitch ModeReader,
	thresholds tracking.Thresholds, m *metrics.Metrics) *TrackingService {
	projections.OnRead = m.ProjectionsRead.Inc
	projections.OnDrop = func(reason string) { m.ProjectionsDropped.WithLabelValues(reason).Inc() }

	return &TrackingService{
		projections: projections,
		orders:      orders,
		killSwitch:  killSwitch,
		thresholds:  thresholds.Clamp(),
		metrics:     m,
		now:         time.Now,
		scanLimit:   defaultScanLimit,
	}
}

// Thresholds returns the clamped freshness thresholds in use
func (s *TrackingService) Thresholds() tracking.Thresholds {
	return s.thresholds
}

// CustomerView returns what the customer of an order may see. Anything but
// CUSTOMER_READ_ENABLED yields HIDDEN.
func (s *TrackingService) CustomerView(ctx context.Context, orderID, customerID string) (*models.CustomerTrackingView, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// other customers' orders look exactly like unknown ones
	if order == nil || order.CustomerID != customerID {
		return nil, ErrNotFound
	}

	if !s.killSwitch.Mode(ctx).AllowsCustomerRead() {
		return tracking.Hidden(orderID), nil
	}

	p, err := s.projections.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return tracking.CustomerView(p, s.now(), s.thresholds), nil
}

// Snapshot loads every readable projection with freshness recomputed at now.
// Orders whose projection expired are dropped from the active index.
func (s *TrackingService) Snapshot(ctx context.Context, now time.Time) ([]*models.TrackingProjection, error) {
	ids, err := s.projections.ActiveOrders(ctx, s.scanLimit)
	if err != nil {
		return nil, err
	}

	out := make([]*models.TrackingProjection, 0, len(ids))
	for _, id := range ids {
		p, err := s.projections.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			if err := s.projections.Forget(ctx, id); err != nil {
				return nil, fmt.Errorf("failed to drop expired order: %w", err)
			}
			continue
		}
		tracking.Refresh(p, now, s.thresholds)
		out = append(out, p)
	}
	return out, nil
}

// Overview returns the fleet summary and its validator
func (s *TrackingService) Overview(ctx context.Context) (*FleetOverview, string, error) {
	now := s.now()
	projections, err := s.Snapshot(ctx, now)
	if err != nil {
		return nil, "", err
	}

	o := &FleetOverview{
		KillSwitchMode: s.killSwitch.Mode(ctx),
		Projections:    len(projections),
		Freshness: map[models.FreshnessState]int{
			models.FreshnessLive: 0, models.FreshnessStale: 0, models.FreshnessOffline: 0,
		},
		SLARisk: map[models.SLARiskLevel]int{
			models.SLARiskNone: 0, models.SLARiskLow: 0, models.SLARiskMedium: 0, models.SLARiskHigh: 0,
		},
	}

	for _, p := range projections {
		o.Freshness[p.FreshnessState]++
		o.SLARisk[riskLevel(p)]++
	}

	for state, n := range o.Freshness {
		s.metrics.Freshness.WithLabelValues(string(state)).Set(float64(n))
	}

	etag, err := etagOf(o)
	if err != nil {
		return nil, "", err
	}
	o.GeneratedAt = now.UTC()
	return o, etag, nil
}

// Active returns the most recently updated orders
func (s *TrackingService) Active(ctx context.Context, limit int) (*ActiveOrders, string, error) {
	if limit <= 0 || limit > defaultActiveLimit {
		limit = defaultActiveLimit
	}
	now := s.now()
	projections, err := s.Snapshot(ctx, now)
	if err != nil {
		return nil, "", err
	}

	a := &ActiveOrders{Total: len(projections), Orders: make([]ActiveOrder, 0, min(limit, len(projections)))}
	for _, p := range projections {
		if len(a.Orders) >= limit {
			break
		}
		row := ActiveOrder{
			OrderID:         p.OrderID,
			RiderID:         p.RiderID,
			FreshnessState:  p.FreshnessState,
			LastUpdatedAt:   p.LastUpdatedAt,
			InternalState:   p.InternalState,
			CheckpointState: p.CheckpointState,
			SLARiskLevel:    p.SLARiskLevel,
			ETAP90:          p.ETAP90,
		}
		a.Orders = append(a.Orders, row)
	}

	etag, err := etagOf(a)
	if err != nil {
		return nil, "", err
	}
	a.GeneratedAt = now.UTC()
	return a, etag, nil
}

// Risk groups HIGH and MEDIUM risk orders by region
func (s *TrackingService) Risk(ctx context.Context) (*RiskOverview, string, error) {
	now := s.now()
	projections, err := s.Snapshot(ctx, now)
	if err != nil {
		return nil, "", err
	}

	byRegion := make(map[string]*RiskRegion)
	r := &RiskOverview{Regions: []RiskRegion{}}
	for _, p := range projections {
		level := riskLevel(p)
		if level != models.SLARiskHigh && level != models.SLARiskMedium {
			continue
		}

		token := spatial.RegionToken(p.Position.Lat, p.Position.Lng)
		if token == "" {
			token = "unknown"
		}
		region, ok := byRegion[token]
		if !ok {
			region = &RiskRegion{Region: token}
			byRegion[token] = region
		}
		if level == models.SLARiskHigh {
			region.High++
			r.High++
		} else {
			region.Medium++
			r.Medium++
		}
		region.Orders = append(region.Orders, RiskOrder{OrderID: p.OrderID, RiderID: p.RiderID, SLARiskLevel: level, Reasons: p.SLARiskReasons})
	}

	for _, region := range byRegion {
		sort.Slice(region.Orders, func(i, j int) bool { return region.Orders[i].OrderID < region.Orders[j].OrderID })
		r.Regions = append(r.Regions, *region)
	}
	sort.Slice(r.Regions, func(i, j int) bool {
		if r.Regions[i].High != r.Regions[j].High {
			return r.Regions[i].High > r.Regions[j].High
		}
		return r.Regions[i].Region < r.Regions[j].Region
	})

	etag, err := etagOf(r)
	if err != nil {
		return nil, "", err
	}
	r.GeneratedAt = now.UTC()
	return r, etag, nil
}

func riskLevel(p *models.TrackingProjection) models.SLARiskLevel {
	if p.SLARiskLevel == "" {
		return models.SLARiskNone
	}
	return p.SLARiskLevel
}

// etagOf must be called before generatedAt is set so polling clients see a
// stable validator while the content is unchanged
func etagOf(v any) (string, error) {
	hash, err := fingerprint.JSON("", v)
	if err != nil {
		return "", fmt.Errorf("failed to compute etag: %w", err)
	}
	return `"` + hash + `"`, nil
}
