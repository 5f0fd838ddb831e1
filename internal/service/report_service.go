package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quickqueue/helpdesk/internal/domain"
	"github.com/quickqueue/helpdesk/internal/events"
	"github.com/quickqueue/helpdesk/internal/rbac"
	"github.com/quickqueue/helpdesk/internal/repository"
	apperrors "github.com/quickqueue/helpdesk/pkg/util"
)

const summaryCacheKey = "helpdesk:summary"

// Summary holds ticket counts by status and by priority. Every enum value
// is present, zero-filled.
type Summary struct {
	ByStatus   map[domain.TicketStatus]int64   `json:"by_status"`
	ByPriority map[domain.TicketPriority]int64 `json:"by_priority"`
}

// MonthlyBreakdown holds counts for tickets created in one calendar month.
type MonthlyBreakdown struct {
	Year       int                             `json:"year"`
	Month      int                             `json:"month"`
	ByStatus   map[domain.TicketStatus]int64   `json:"by_status"`
	ByPriority map[domain.TicketPriority]int64 `json:"by_priority"`
}

// YearlyBreakdown holds created-ticket counts per calendar month, 1-12
// zero-filled.
type YearlyBreakdown struct {
	Year    int             `json:"year"`
	ByMonth map[int]int64   `json:"by_month"`
}

// recentTicketLimit caps the newest-first slice in the dashboard payload.
const recentTicketLimit = 5

// DashboardStats mirrors the landing-page tallies.
type DashboardStats struct {
	TotalTickets      int64           `json:"total_tickets"`
	OpenTickets       int64           `json:"open_tickets"`
	InProgressTickets int64           `json:"in_progress_tickets"`
	ResolvedTickets   int64           `json:"resolved_tickets"`
	ClosedTickets     int64           `json:"closed_tickets"`
	MonthlyTickets    int64           `json:"monthly_tickets"`
	YearlyTickets     int64           `json:"yearly_tickets"`
	RepeatTickets     int64           `json:"repeat_tickets"`
	RecentTickets     []domain.Ticket `json:"recent_tickets"`
}

// ReportService computes read-only aggregates over the ticket store. The
// summary may be cached in Redis; mutation events drop the cached value so
// staleness stays bounded by the write path, not only the TTL.
type ReportService struct {
	tickets  repository.TicketRepository
	engine   *rbac.Engine
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService builds the service. cache may be nil, in which case
// every call recomputes.
func NewReportService(tickets repository.TicketRepository, engine *rbac.Engine, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *ReportService {
	return &ReportService{
		tickets:  tickets,
		engine:   engine,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterInvalidation subscribes cache invalidation to every mutation
// event type.
func (s *ReportService) RegisterInvalidation(dispatcher events.Dispatcher) {
	if dispatcher == nil || s.cache == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketStatusChanged,
		events.EventTicketDeleted,
	} {
		dispatcher.Subscribe(eventType, func(ctx context.Context, _ events.Event) error {
			if err := s.cache.Del(ctx, summaryCacheKey).Err(); err != nil {
				s.logger.Debug("summary cache invalidation failed", zap.Error(err))
			}
			return nil
		})
	}
}

// Summary returns zero-filled counts by status and priority.
func (s *ReportService) Summary(ctx context.Context, actor domain.Actor) (*Summary, error) {
	if !s.engine.CanPerform(actor, rbac.ActionViewAnalytics, nil) {
		return nil, apperrors.NewPermissionDenied("analytics access required")
	}

	if cached := s.cachedSummary(ctx); cached != nil {
		return cached, nil
	}

	summary, err := s.computeSummary(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	s.storeSummary(ctx, summary)
	return summary, nil
}

// MonthlyBreakdown returns counts for tickets created in the given
// calendar month.
func (s *ReportService) MonthlyBreakdown(ctx context.Context, actor domain.Actor, year int, month time.Month) (*MonthlyBreakdown, error) {
	if !s.engine.CanPerform(actor, rbac.ActionViewAnalytics, nil) {
		return nil, apperrors.NewPermissionDenied("analytics access required")
	}
	if month < time.January || month > time.December {
		return nil, apperrors.NewValidationError("month must be 1-12", map[string]any{"month": int(month)})
	}

	summary, err := s.computeSummary(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return &MonthlyBreakdown{
		Year:       year,
		Month:      int(month),
		ByStatus:   summary.ByStatus,
		ByPriority: summary.ByPriority,
	}, nil
}

// YearlyBreakdown returns created-ticket counts per month of the year.
func (s *ReportService) YearlyBreakdown(ctx context.Context, actor domain.Actor, year int) (*YearlyBreakdown, error) {
	if !s.engine.CanPerform(actor, rbac.ActionViewAnalytics, nil) {
		return nil, apperrors.NewPermissionDenied("analytics access required")
	}

	counts, err := s.tickets.CountByMonth(ctx, year)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	byMonth := make(map[int]int64, 12)
	for month := 1; month <= 12; month++ {
		byMonth[month] = counts[time.Month(month)]
	}
	return &YearlyBreakdown{Year: year, ByMonth: byMonth}, nil
}

// RepeatTicketCount counts tickets flagged is_repeat.
func (s *ReportService) RepeatTicketCount(ctx context.Context, actor domain.Actor) (int64, error) {
	if !s.engine.CanPerform(actor, rbac.ActionViewAnalytics, nil) {
		return 0, apperrors.NewPermissionDenied("analytics access required")
	}
	count, err := s.tickets.CountRepeat(ctx)
	if err != nil {
		return 0, apperrors.NewStorageUnavailable(err)
	}
	return count, nil
}

// DashboardStats assembles the landing-page tallies.
func (s *ReportService) DashboardStats(ctx context.Context, actor domain.Actor) (*DashboardStats, error) {
	if !s.engine.CanPerform(actor, rbac.ActionViewDashboard, nil) {
		return nil, apperrors.NewPermissionDenied("dashboard access required")
	}

	byStatus, err := s.tickets.CountByStatus(ctx, 0, 0)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	now := s.now()
	monthly, err := s.tickets.CountByMonth(ctx, now.Year())
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	repeat, err := s.tickets.CountRepeat(ctx)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	recent, err := s.tickets.ListRecent(ctx, recentTicketLimit)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	if recent == nil {
		recent = []domain.Ticket{}
	}

	stats := &DashboardStats{
		OpenTickets:       byStatus[domain.TicketStatusOpen],
		InProgressTickets: byStatus[domain.TicketStatusInProgress],
		ResolvedTickets:   byStatus[domain.TicketStatusResolved],
		ClosedTickets:     byStatus[domain.TicketStatusClosed],
		RepeatTickets:     repeat,
		RecentTickets:     recent,
	}
	for _, count := range byStatus {
		stats.TotalTickets += count
	}
	for _, count := range monthly {
		stats.YearlyTickets += count
	}
	stats.MonthlyTickets = monthly[now.Month()]
	return stats, nil
}

func (s *ReportService) computeSummary(ctx context.Context, year int, month time.Month) (*Summary, error) {
	statusCounts, err := s.tickets.CountByStatus(ctx, year, month)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	priorityCounts, err := s.tickets.CountByPriority(ctx, year, month)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}

	summary := &Summary{
		ByStatus:   make(map[domain.TicketStatus]int64, len(domain.TicketStatuses)),
		ByPriority: make(map[domain.TicketPriority]int64, len(domain.TicketPriorities)),
	}
	for _, status := range domain.TicketStatuses {
		summary.ByStatus[status] = statusCounts[status]
	}
	for _, priority := range domain.TicketPriorities {
		summary.ByPriority[priority] = priorityCounts[priority]
	}
	return summary, nil
}

func (s *ReportService) cachedSummary(ctx context.Context) *Summary {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, err := s.cache.Get(ctx, summaryCacheKey).Bytes()
	if err != nil {
		return nil
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *ReportService) storeSummary(ctx context.Context, summary *Summary) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, summaryCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("summary cache write failed", zap.Error(err))
	}
}
