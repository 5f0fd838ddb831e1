package dto

import (
	"github.com/quickqueue/helpdesk/internal/service"
)

// SummaryResponse mirrors service.Summary on the wire.
type SummaryResponse struct {
	ByStatus   map[string]int64 `json:"by_status"`
	ByPriority map[string]int64 `json:"by_priority"`
}

// NewSummaryResponse maps a summary.
func NewSummaryResponse(s *service.Summary) SummaryResponse {
	out := SummaryResponse{
		ByStatus:   make(map[string]int64, len(s.ByStatus)),
		ByPriority: make(map[string]int64, len(s.ByPriority)),
	}
	for status, count := range s.ByStatus {
		out.ByStatus[string(status)] = count
	}
	for priority, count := range s.ByPriority {
		out.ByPriority[string(priority)] = count
	}
	return out
}

// MonthlyResponse mirrors a monthly breakdown.
type MonthlyResponse struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByPriority map[string]int64 `json:"by_priority"`
}

// NewMonthlyResponse maps a monthly breakdown.
func NewMonthlyResponse(b *service.MonthlyBreakdown) MonthlyResponse {
	summary := NewSummaryResponse(&service.Summary{ByStatus: b.ByStatus, ByPriority: b.ByPriority})
	return MonthlyResponse{
		Year:       b.Year,
		Month:      b.Month,
		ByStatus:   summary.ByStatus,
		ByPriority: summary.ByPriority,
	}
}

// YearlyResponse mirrors a yearly breakdown.
type YearlyResponse struct {
	Year    int           `json:"year"`
	ByMonth map[int]int64 `json:"by_month"`
}

// RepeatResponse carries the repeat-ticket tally.
type RepeatResponse struct {
	RepeatTickets int64 `json:"repeat_tickets"`
}

// StatsResponse mirrors the dashboard payload: tallies plus the newest
// tickets.
type StatsResponse struct {
	TotalTickets      int64            `json:"total_tickets"`
	OpenTickets       int64            `json:"open_tickets"`
	InProgressTickets int64            `json:"in_progress_tickets"`
	ResolvedTickets   int64            `json:"resolved_tickets"`
	ClosedTickets     int64            `json:"closed_tickets"`
	MonthlyTickets    int64            `json:"monthly_tickets"`
	YearlyTickets     int64            `json:"yearly_tickets"`
	RepeatTickets     int64            `json:"repeat_tickets"`
	RecentTickets     []TicketResponse `json:"recent_tickets"`
}

// NewStatsResponse maps dashboard stats.
func NewStatsResponse(stats *service.DashboardStats) StatsResponse {
	return StatsResponse{
		TotalTickets:      stats.TotalTickets,
		OpenTickets:       stats.OpenTickets,
		InProgressTickets: stats.InProgressTickets,
		ResolvedTickets:   stats.ResolvedTickets,
		ClosedTickets:     stats.ClosedTickets,
		MonthlyTickets:    stats.MonthlyTickets,
		YearlyTickets:     stats.YearlyTickets,
		RepeatTickets:     stats.RepeatTickets,
		RecentTickets:     NewTicketListResponse(stats.RecentTickets),
	}
}
