package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"platform/internal/apperr"
	"platform/internal/auth"
	"platform/internal/cache"
	"platform/internal/model"
	"platform/internal/repository"
)

// topN is the fixed ranking depth for top locations / top items.
const topN = 5

const dayFormat = "2006-01-02"

type DashboardService interface {
	ComputeDashboard(ctx context.Context, p auth.Principal, preset, startStr, endStr string) (*model.DashboardResponse, error)
}

type dashboardService struct {
	gate         *auth.Gate
	txRepo       repository.TransactionRepository
	locationRepo repository.LocationRepository
	catalogRepo  repository.CatalogRepository
	cache        *cache.Cache
}

func NewDashboardService(
	gate *auth.Gate,
	txRepo repository.TransactionRepository,
	locationRepo repository.LocationRepository,
	catalogRepo repository.CatalogRepository,
	c *cache.Cache,
) DashboardService {
	return &dashboardService{
		gate:         gate,
		txRepo:       txRepo,
		locationRepo: locationRepo,
		catalogRepo:  catalogRepo,
		cache:        c,
	}
}

// ResolveRange turns a preset or explicit start/end pair into an inclusive
// UTC day range. Explicit dates use YYYY-MM-DD.
func ResolveRange(preset, startStr, endStr string, now time.Time) (model.DashboardRange, error) {
	today := now.UTC().Truncate(24 * time.Hour)

	switch preset {
	case "", model.RangeToday:
		return model.DashboardRange{Preset: model.RangeToday, Start: today, End: today}, nil
	case model.RangeLast7:
		return model.DashboardRange{Preset: preset, Start: today.AddDate(0, 0, -6), End: today}, nil
	case model.RangeLast30:
		return model.DashboardRange{Preset: preset, Start: today.AddDate(0, 0, -29), End: today}, nil
	case model.RangeLast90:
		return model.DashboardRange{Preset: preset, Start: today.AddDate(0, 0, -89), End: today}, nil
	case model.RangeCustom:
		start, err := time.ParseInLocation(dayFormat, startStr, time.UTC)
		if err != nil {
			return model.DashboardRange{}, apperr.Invalidf("start date %q: expected YYYY-MM-DD", startStr)
		}
		end, err := time.ParseInLocation(dayFormat, endStr, time.UTC)
		if err != nil {
			return model.DashboardRange{}, apperr.Invalidf("end date %q: expected YYYY-MM-DD", endStr)
		}
		if end.Before(start) {
			return model.DashboardRange{}, apperr.Invalidf("end date precedes start date")
		}
		return model.DashboardRange{Preset: model.RangeCustom, Start: start, End: end}, nil
	default:
		return model.DashboardRange{}, apperr.Invalidf("unknown range preset %q", preset)
	}
}

func (s *dashboardService) ComputeDashboard(ctx context.Context, p auth.Principal, preset, startStr, endStr string) (*model.DashboardResponse, error) {
	rng, err := ResolveRange(preset, startStr, endStr, time.Now())
	if err != nil {
		return nil, err
	}

	scope, err := s.gate.AuthorizeRead(ctx, p, auth.KindMetrics, nil)
	if err != nil {
		return nil, err
	}

	key := cache.Key(auth.KindMetrics, scope, "dashboard", rng.Start.Format(dayFormat), rng.End.Format(dayFormat))

	var out model.DashboardResponse
	err = s.cache.Fetch(ctx, key, cache.CategoryTransaction, &out, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx, scope, rng)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *dashboardService) compute(ctx context.Context, scope auth.ScopeFilter, rng model.DashboardRange) (*model.DashboardResponse, error) {
	// The repository range is the whole of every day in [start, end].
	queryStart := rng.Start
	queryEnd := rng.End.Add(24*time.Hour - time.Nanosecond)

	txs, err := s.txRepo.ListBetween(ctx, scope, queryStart, queryEnd)
	if err != nil {
		return nil, err
	}

	resp := &model.DashboardResponse{Range: rng}
	resp.KPIs = computeKPIs(txs)
	resp.Trend = computeTrend(txs, rng.Start, rng.End)

	locations, items := rankEntities(txs)

	locationNames, err := s.locationRepo.NamesByID(ctx, rankedIDs(locations))
	if err != nil {
		return nil, err
	}
	itemNames, err := s.catalogRepo.NamesByID(ctx, rankedIDs(items))
	if err != nil {
		return nil, err
	}

	resp.TopLocations = renderRanking(locations, locationNames)
	resp.TopItems = renderRanking(items, itemNames)
	return resp, nil
}

// computeKPIs reduces the scoped, date-filtered transaction set. Revenue
// counts COMPLETED transactions only; order count counts every transaction.
func computeKPIs(txs []model.Transaction) []model.KPI {
	revenue := decimal.Zero
	orderCount := 0
	seenLocations := map[uuid.UUID]struct{}{}

	for i := range txs {
		tx := &txs[i]
		orderCount++
		seenLocations[tx.LocationID] = struct{}{}
		if tx.Status == model.TxStatusCompleted {
			revenue = revenue.Add(tx.Total())
		}
	}

	aov := decimal.Zero
	if orderCount > 0 {
		aov = revenue.DivRound(decimal.NewFromInt(int64(orderCount)), 2)
	}

	return []model.KPI{
		{Key: "total_revenue", Label: "Total Revenue", Value: revenue.StringFixed(2), Unit: "USD"},
		{Key: "total_orders", Label: "Total Orders", Value: decimal.NewFromInt(int64(orderCount)).String(), Unit: "count"},
		{Key: "average_order_value", Label: "Average Order Value", Value: aov.StringFixed(2), Unit: "USD"},
		{Key: "location_count", Label: "Active Locations", Value: decimal.NewFromInt(int64(len(seenLocations))).String(), Unit: "count"},
	}
}

// computeTrend buckets transactions by UTC calendar day. The series is
// dense: every day in [start, end] appears exactly once in ascending order,
// zero-filled when nothing happened, so charting never reconstructs gaps.
func computeTrend(txs []model.Transaction, start, end time.Time) []model.TrendPoint {
	type bucket struct {
		orders  int
		revenue decimal.Decimal
	}
	buckets := map[string]*bucket{}

	for i := range txs {
		tx := &txs[i]
		day := tx.CreatedAt.UTC().Format(dayFormat)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{revenue: decimal.Zero}
			buckets[day] = b
		}
		b.orders++
		if tx.Status == model.TxStatusCompleted {
			b.revenue = b.revenue.Add(tx.Total())
		}
	}

	var points []model.TrendPoint
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayFormat)
		point := model.TrendPoint{Date: key, Orders: 0, Revenue: decimal.Zero.StringFixed(2)}
		if b, ok := buckets[key]; ok {
			point.Orders = b.orders
			point.Revenue = b.revenue.StringFixed(2)
		}
		points = append(points, point)
	}
	return points
}

type rankedGroup struct {
	id      uuid.UUID
	orders  int
	revenue decimal.Decimal
}

// rankEntities groups the transaction set by location and by catalog item,
// in first-seen order of the unsorted scan so ties resolve deterministically.
func rankEntities(txs []model.Transaction) (locations, items []rankedGroup) {
	locIdx := map[uuid.UUID]int{}
	itemIdx := map[uuid.UUID]int{}

	for i := range txs {
		tx := &txs[i]
		completed := tx.Status == model.TxStatusCompleted

		li, ok := locIdx[tx.LocationID]
		if !ok {
			li = len(locations)
			locIdx[tx.LocationID] = li
			locations = append(locations, rankedGroup{id: tx.LocationID, revenue: decimal.Zero})
		}
		locations[li].orders++
		if completed {
			locations[li].revenue = locations[li].revenue.Add(tx.Total())
		}

		seen := map[uuid.UUID]struct{}{}
		for _, line := range tx.Items {
			ii, ok := itemIdx[line.CatalogItemID]
			if !ok {
				ii = len(items)
				itemIdx[line.CatalogItemID] = ii
				items = append(items, rankedGroup{id: line.CatalogItemID, revenue: decimal.Zero})
			}
			if _, dup := seen[line.CatalogItemID]; !dup {
				items[ii].orders++
				seen[line.CatalogItemID] = struct{}{}
			}
			if completed {
				items[ii].revenue = items[ii].revenue.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
			}
		}
	}

	sortRanking(locations)
	sortRanking(items)
	if len(locations) > topN {
		locations = locations[:topN]
	}
	if len(items) > topN {
		items = items[:topN]
	}
	return locations, items
}

// sortRanking orders by revenue descending, ties by higher order count,
// remaining ties by first-seen position (stable sort preserves it).
func sortRanking(groups []rankedGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		cmp := groups[i].revenue.Cmp(groups[j].revenue)
		if cmp != 0 {
			return cmp > 0
		}
		return groups[i].orders > groups[j].orders
	})
}

func rankedIDs(groups []rankedGroup) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.id)
	}
	return ids
}

func renderRanking(groups []rankedGroup, names map[uuid.UUID]string) []model.RankedEntity {
	out := make([]model.RankedEntity, 0, len(groups))
	for _, g := range groups {
		name := names[g.id]
		if name == "" {
			name = g.id.String()
		}
		aov := decimal.Zero
		if g.orders > 0 {
			aov = g.revenue.DivRound(decimal.NewFromInt(int64(g.orders)), 2)
		}
		out = append(out, model.RankedEntity{
			EntityID:          g.id.String(),
			Name:              name,
			Orders:            g.orders,
			Revenue:           g.revenue.StringFixed(2),
			AverageOrderValue: aov.StringFixed(2),
		})
	}
	return out
}
