package model

import (
	"time"
)

// Range presets accepted by the dashboard endpoint.
const (
	RangeToday  = "today"
	RangeLast7  = "last_7_days"
	RangeLast30 = "last_30_days"
	RangeLast90 = "last_90_days"
	RangeCustom = "custom"
)

// DashboardRange is the resolved inclusive UTC day range a dashboard covers.
type DashboardRange struct {
	Preset string    `json:"preset"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// KPI is one headline figure on the dashboard.
type KPI struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// TrendPoint is one calendar day in the trend series. The series is dense:
// every day in range appears exactly once, zero-filled when idle.
type TrendPoint struct {
	Date    string `json:"date"` // YYYY-MM-DD, UTC
	Orders  int    `json:"orders"`
	Revenue string `json:"revenue"`
}

// RankedEntity is one row of a top-N ranking (locations or catalog items).
type RankedEntity struct {
	EntityID          string `json:"entity_id"`
	Name              string `json:"name"`
	Orders            int    `json:"orders"`
	Revenue           string `json:"revenue"`
	AverageOrderValue string `json:"average_order_value"`
}

// DashboardResponse aggregates KPIs, the dense trend series and rankings
// for a requested date range.
type DashboardResponse struct {
	Range        DashboardRange `json:"range"`
	KPIs         []KPI          `json:"kpis"`
	Trend        []TrendPoint   `json:"trend"`
	TopLocations []RankedEntity `json:"top_locations"`
	TopItems     []RankedEntity `json:"top_items"`
}
