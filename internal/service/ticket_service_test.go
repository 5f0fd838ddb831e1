package service_test

import (
	"context"
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quickqueue/helpdesk/internal/domain"
	"github.com/quickqueue/helpdesk/internal/events"
	"github.com/quickqueue/helpdesk/internal/rbac"
	"github.com/quickqueue/helpdesk/internal/repository"
	"github.com/quickqueue/helpdesk/internal/service"
	apperrors "github.com/quickqueue/helpdesk/pkg/util"
)

func codeOf(err error) string {
	return apperrors.ToDomainError(err).Code
}

var _ = Describe("TicketService", func() {
	var (
		ctx        context.Context
		store      *repository.MemoryTicketStore
		dispatcher events.Dispatcher
		svc        *service.TicketService

		admin domain.Actor
		agent domain.Actor
		alice domain.Actor
		bob   domain.Actor
	)

	newService := func(selfDelete bool) *service.TicketService {
		return service.NewTicketService(service.TicketDependencies{
			TicketRepo:  store,
			CommentRepo: store.Comments(),
			Engine:      rbac.NewEngine(selfDelete),
			Dispatcher:  dispatcher,
		})
	}

	create := func(actor domain.Actor, title string, priority domain.TicketPriority) *domain.Ticket {
		ticket, err := svc.CreateTicket(ctx, actor, service.TicketCreateInput{
			Title:       title,
			Description: "something broke",
			Priority:    priority,
		})
		Expect(err).NotTo(HaveOccurred())
		return ticket
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = repository.NewMemoryTicketStore()
		dispatcher = events.NewInMemoryDispatcher()
		svc = newService(false)

		admin = domain.Actor{UserID: 1, Username: "admin", Role: domain.RoleAdmin}
		agent = domain.Actor{UserID: 2, Username: "agent", Role: domain.RoleAgent}
		alice = domain.Actor{UserID: 3, Username: "alice", Role: domain.RoleUser}
		bob = domain.Actor{UserID: 4, Username: "bob", Role: domain.RoleUser}
	})

	Describe("CreateTicket", func() {
		It("defaults to open status and medium priority", func() {
			ticket := create(alice, "printer down", "")
			Expect(ticket.Status).To(Equal(domain.TicketStatusOpen))
			Expect(ticket.Priority).To(Equal(domain.TicketPriorityMedium))
			Expect(ticket.CreatorID).To(Equal(alice.UserID))
			Expect(ticket.UpdatedAt).To(BeNil())
		})

		It("rejects an empty title", func() {
			_, err := svc.CreateTicket(ctx, alice, service.TicketCreateInput{
				Title:       "   ",
				Description: "d",
			})
			Expect(codeOf(err)).To(Equal("VALIDATION_FAILED"))
		})

		It("counts title length in characters, not bytes", func() {
			long := make([]rune, 200)
			for i := range long {
				long[i] = 'é'
			}
			ticket := create(alice, string(long), domain.TicketPriorityLow)
			Expect(ticket.ID).NotTo(BeZero())

			_, err := svc.CreateTicket(ctx, alice, service.TicketCreateInput{
				Title:       string(long) + "x",
				Description: "d",
			})
			Expect(codeOf(err)).To(Equal("VALIDATION_FAILED"))
		})

		It("rejects an unknown priority", func() {
			_, err := svc.CreateTicket(ctx, alice, service.TicketCreateInput{
				Title:       "t",
				Description: "d",
				Priority:    domain.TicketPriority("critical"),
			})
			Expect(codeOf(err)).To(Equal("VALIDATION_FAILED"))
		})
	})

	Describe("GetTicket", func() {
		It("reports not-found before permissions", func() {
			_, err := svc.GetTicket(ctx, bob, 999)
			Expect(codeOf(err)).To(Equal("NOT_FOUND"))
		})

		It("hides foreign tickets from plain users", func() {
			ticket := create(alice, "private", domain.TicketPriorityLow)
			_, err := svc.GetTicket(ctx, bob, ticket.ID)
			Expect(codeOf(err)).To(Equal("FORBIDDEN"))
		})

		It("shows any ticket to agents and admins", func() {
			ticket := create(alice, "shared", domain.TicketPriorityLow)
			for _, actor := range []domain.Actor{agent, admin, alice} {
				got, err := svc.GetTicket(ctx, actor, ticket.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal(ticket.ID))
			}
		})
	})

	Describe("ListVisibleTickets", func() {
		BeforeEach(func() {
			create(alice, "printer down", domain.TicketPriorityHigh)
			create(alice, "vpn broken", domain.TicketPriorityLow)
			create(bob, "monitor flicker", domain.TicketPriorityHigh)
			create(bob, "slow laptop", domain.TicketPriorityHigh)
		})

		It("scopes plain users to their own tickets", func() {
			got, err := svc.ListVisibleTickets(ctx, alice, service.TicketListInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
			for _, ticket := range got {
				Expect(ticket.CreatorID).To(Equal(alice.UserID))
			}
		})

		It("shows agents everything", func() {
			got, err := svc.ListVisibleTickets(ctx, agent, service.TicketListInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(4))
		})

		It("combines filters with AND", func() {
			open := domain.TicketStatusOpen
			high := domain.TicketPriorityHigh
			got, err := svc.ListVisibleTickets(ctx, agent, service.TicketListInput{
				Status:   &open,
				Priority: &high,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(3))
		})

		It("rejects an invalid status filter", func() {
			bad := domain.TicketStatus("pending")
			_, err := svc.ListVisibleTickets(ctx, agent, service.TicketListInput{Status: &bad})
			Expect(codeOf(err)).To(Equal("VALIDATION_FAILED"))
		})
	})

	Describe("UpdateTicket", func() {
		var ticket *domain.Ticket

		BeforeEach(func() {
			ticket = create(alice, "flaky wifi", domain.TicketPriorityMedium)
		})

		It("rejects an empty patch", func() {
			_, err := svc.UpdateTicket(ctx, admin, ticket.ID, repository.TicketPatch{})
			Expect(codeOf(err)).To(Equal("VALIDATION_FAILED"))
		})

		It("lets creators resolve their own ticket", func() {
			resolved := domain.TicketStatusResolved
			got, err := svc.UpdateTicket(ctx, alice, ticket.ID, repository.TicketPatch{Status: &resolved})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(domain.TicketStatusResolved))
			Expect(got.UpdatedAt).NotTo(BeNil())
		})

		It("refuses the whole patch when one field is denied", func() {
			resolved := domain.TicketStatusResolved
			title := "renamed"
			_, err := svc.UpdateTicket(ctx, agent, ticket.ID, repository.TicketPatch{
				Status: &resolved,
				Title:  &title,
			})
			Expect(codeOf(err)).To(Equal("FORBIDDEN"))

			got, getErr := svc.GetTicket(ctx, agent, ticket.ID)
			Expect(getErr).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("flaky wifi"))
			Expect(got.Status).To(Equal(domain.TicketStatusOpen))
		})

		It("blocks plain users from touching foreign tickets", func() {
			resolved := domain.TicketStatusResolved
			_, err := svc.UpdateTicket(ctx, bob, ticket.ID, repository.TicketPatch{Status: &resolved})
			Expect(codeOf(err)).To(Equal("FORBIDDEN"))
		})

		It("lets agents assign and flag repeats", func() {
			agentID := agent.UserID
			repeat := true
			got, err := svc.UpdateTicket(ctx, agent, ticket.ID, repository.TicketPatch{
				AssigneeID: &agentID,
				IsRepeat:   &repeat,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(*got.AssigneeID).To(Equal(agentID))
			Expect(got.IsRepeat).To(BeTrue())
		})

		It("leaves the update timestamp alone on a no-op patch", func() {
			same := domain.TicketPriorityMedium
			got, err := svc.UpdateTicket(ctx, admin, ticket.ID, repository.TicketPatch{Priority: &same})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.UpdatedAt).To(BeNil())
		})
	})

	Describe("DeleteTicket", func() {
		var ticket *domain.Ticket

		BeforeEach(func() {
			ticket = create(alice, "disposable", domain.TicketPriorityLow)
			_, err := svc.AddComment(ctx, alice, ticket.ID, "context")
			Expect(err).NotTo(HaveOccurred())
		})

		It("is admin-only by default", func() {
			Expect(codeOf(svc.DeleteTicket(ctx, alice, ticket.ID))).To(Equal("FORBIDDEN"))
			Expect(codeOf(svc.DeleteTicket(ctx, agent, ticket.ID))).To(Equal("FORBIDDEN"))
			Expect(svc.DeleteTicket(ctx, admin, ticket.ID)).To(Succeed())
		})

		It("cascades to comments", func() {
			Expect(svc.DeleteTicket(ctx, admin, ticket.ID)).To(Succeed())
			_, err := svc.ListComments(ctx, admin, ticket.ID)
			Expect(codeOf(err)).To(Equal("NOT_FOUND"))
		})

		It("never reuses ids after deletion", func() {
			Expect(svc.DeleteTicket(ctx, admin, ticket.ID)).To(Succeed())
			next := create(alice, "fresh", domain.TicketPriorityLow)
			Expect(next.ID).To(BeNumerically(">", ticket.ID))
		})

		Context("with self-delete enabled", func() {
			BeforeEach(func() {
				svc = newService(true)
			})

			It("lets only the creator delete", func() {
				Expect(codeOf(svc.DeleteTicket(ctx, bob, ticket.ID))).To(Equal("FORBIDDEN"))
				Expect(svc.DeleteTicket(ctx, alice, ticket.ID)).To(Succeed())
			})
		})
	})

	Describe("Comments", func() {
		var ticket *domain.Ticket

		BeforeEach(func() {
			ticket = create(alice, "commented", domain.TicketPriorityLow)
		})

		It("returns newest first", func() {
			for _, body := range []string{"first", "second", "third"} {
				_, err := svc.AddComment(ctx, alice, ticket.ID, body)
				Expect(err).NotTo(HaveOccurred())
			}

			got, err := svc.ListComments(ctx, alice, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(3))
			Expect(got[0].Body).To(Equal("third"))
			Expect(got[2].Body).To(Equal("first"))
		})

		It("follows view access", func() {
			_, err := svc.AddComment(ctx, bob, ticket.ID, "drive-by")
			Expect(codeOf(err)).To(Equal("FORBIDDEN"))

			_, err = svc.ListComments(ctx, bob, ticket.ID)
			Expect(codeOf(err)).To(Equal("FORBIDDEN"))

			_, err = svc.AddComment(ctx, agent, ticket.ID, "triaged")
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects an empty body", func() {
			_, err := svc.AddComment(ctx, alice, ticket.ID, "  ")
			Expect(codeOf(err)).To(Equal("VALIDATION_FAILED"))
		})

		It("trims the event preview on rune boundaries", func() {
			var payload events.CommentAddedPayload
			dispatcher.Subscribe(events.EventCommentAdded, func(_ context.Context, event events.Event) error {
				payload = event.Payload.(events.CommentAddedPayload)
				return nil
			})

			body := strings.Repeat("é", 150)
			_, err := svc.AddComment(ctx, alice, ticket.ID, body)
			Expect(err).NotTo(HaveOccurred())

			Expect(utf8.ValidString(payload.BodyPreview)).To(BeTrue())
			Expect(payload.BodyPreview).To(Equal(strings.Repeat("é", 117) + "..."))
		})
	})
})
