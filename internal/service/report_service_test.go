package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quickqueue/helpdesk/internal/domain"
	"github.com/quickqueue/helpdesk/internal/rbac"
	"github.com/quickqueue/helpdesk/internal/repository"
	"github.com/quickqueue/helpdesk/internal/service"
)

var _ = Describe("ReportService", func() {
	var (
		ctx     context.Context
		store   *repository.MemoryTicketStore
		reports *service.ReportService
		tickets *service.TicketService

		admin domain.Actor
		alice domain.Actor
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = repository.NewMemoryTicketStore()
		engine := rbac.NewEngine(false)
		reports = service.NewReportService(store, engine, nil, 0, zap.NewNop())
		tickets = service.NewTicketService(service.TicketDependencies{
			TicketRepo:  store,
			CommentRepo: store.Comments(),
			Engine:      engine,
		})

		admin = domain.Actor{UserID: 1, Username: "admin", Role: domain.RoleAdmin}
		alice = domain.Actor{UserID: 3, Username: "alice", Role: domain.RoleUser}
	})

	seed := func(priority domain.TicketPriority, status domain.TicketStatus) {
		ticket, err := tickets.CreateTicket(ctx, alice, service.TicketCreateInput{
			Title:       "seed",
			Description: "d",
			Priority:    priority,
		})
		Expect(err).NotTo(HaveOccurred())
		if status != domain.TicketStatusOpen {
			_, err = tickets.UpdateTicket(ctx, admin, ticket.ID, repository.TicketPatch{Status: &status})
			Expect(err).NotTo(HaveOccurred())
		}
	}

	Describe("Summary", func() {
		It("zero-fills every status and priority", func() {
			summary, err := reports.Summary(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.ByStatus).To(HaveLen(len(domain.TicketStatuses)))
			Expect(summary.ByPriority).To(HaveLen(len(domain.TicketPriorities)))
			for _, count := range summary.ByStatus {
				Expect(count).To(BeZero())
			}
		})

		It("sums to the ticket total on both axes", func() {
			seed(domain.TicketPriorityHigh, domain.TicketStatusOpen)
			seed(domain.TicketPriorityHigh, domain.TicketStatusResolved)
			seed(domain.TicketPriorityLow, domain.TicketStatusClosed)

			summary, err := reports.Summary(ctx, alice)
			Expect(err).NotTo(HaveOccurred())

			var statusTotal, priorityTotal int64
			for _, count := range summary.ByStatus {
				statusTotal += count
			}
			for _, count := range summary.ByPriority {
				priorityTotal += count
			}
			Expect(statusTotal).To(Equal(int64(3)))
			Expect(priorityTotal).To(Equal(int64(3)))
			Expect(summary.ByStatus[domain.TicketStatusResolved]).To(Equal(int64(1)))
			Expect(summary.ByPriority[domain.TicketPriorityHigh]).To(Equal(int64(2)))
		})
	})

	Describe("YearlyBreakdown", func() {
		It("zero-fills all twelve months", func() {
			breakdown, err := reports.YearlyBreakdown(ctx, alice, 2026)
			Expect(err).NotTo(HaveOccurred())
			Expect(breakdown.ByMonth).To(HaveLen(12))
			for month := 1; month <= 12; month++ {
				Expect(breakdown.ByMonth).To(HaveKey(month))
			}
		})
	})

	Describe("MonthlyBreakdown", func() {
		It("rejects an out-of-range month", func() {
			_, err := reports.MonthlyBreakdown(ctx, alice, 2026, 13)
			Expect(codeOf(err)).To(Equal("VALIDATION_FAILED"))
		})
	})

	Describe("RepeatTicketCount", func() {
		It("counts only flagged tickets", func() {
			seed(domain.TicketPriorityLow, domain.TicketStatusOpen)
			seed(domain.TicketPriorityLow, domain.TicketStatusOpen)

			repeat := true
			_, err := tickets.UpdateTicket(ctx, admin, 1, repository.TicketPatch{IsRepeat: &repeat})
			Expect(err).NotTo(HaveOccurred())

			count, err := reports.RepeatTicketCount(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("DashboardStats", func() {
		It("tallies totals and the current month", func() {
			seed(domain.TicketPriorityHigh, domain.TicketStatusOpen)
			seed(domain.TicketPriorityLow, domain.TicketStatusResolved)

			stats, err := reports.DashboardStats(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalTickets).To(Equal(int64(2)))
			Expect(stats.OpenTickets).To(Equal(int64(1)))
			Expect(stats.ResolvedTickets).To(Equal(int64(1)))
			Expect(stats.MonthlyTickets).To(Equal(int64(2)))
			Expect(stats.YearlyTickets).To(Equal(int64(2)))
		})

		It("includes the newest tickets first", func() {
			for _, title := range []string{"first", "second", "third"} {
				_, err := tickets.CreateTicket(ctx, alice, service.TicketCreateInput{
					Title:       title,
					Description: "d",
				})
				Expect(err).NotTo(HaveOccurred())
			}

			stats, err := reports.DashboardStats(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.RecentTickets).To(HaveLen(3))
			Expect(stats.RecentTickets[0].Title).To(Equal("third"))
			Expect(stats.RecentTickets[2].Title).To(Equal("first"))
		})

		It("caps the recent slice at five", func() {
			for i := 0; i < 7; i++ {
				seed(domain.TicketPriorityLow, domain.TicketStatusOpen)
			}

			stats, err := reports.DashboardStats(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.RecentTickets).To(HaveLen(5))
		})

		It("returns an empty recent slice when there are no tickets", func() {
			stats, err := reports.DashboardStats(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.RecentTickets).NotTo(BeNil())
			Expect(stats.RecentTickets).To(BeEmpty())
		})
	})
})
