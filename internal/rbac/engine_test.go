package rbac_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quickqueue/helpdesk/internal/domain"
	"github.com/quickqueue/helpdesk/internal/rbac"
)

var _ = Describe("Engine", func() {
	var (
		engine *rbac.Engine
		admin  domain.Actor
		agent  domain.Actor
		alice  domain.Actor
		bob    domain.Actor
	)

	ticketOf := func(creator domain.Actor) *domain.Ticket {
		return &domain.Ticket{ID: 1, CreatorID: creator.UserID, Status: domain.TicketStatusOpen}
	}

	BeforeEach(func() {
		engine = rbac.NewEngine(false)
		admin = domain.Actor{UserID: 1, Username: "admin", Role: domain.RoleAdmin}
		agent = domain.Actor{UserID: 2, Username: "agent", Role: domain.RoleAgent}
		alice = domain.Actor{UserID: 3, Username: "alice", Role: domain.RoleUser}
		bob = domain.Actor{UserID: 4, Username: "bob", Role: domain.RoleUser}
	})

	Describe("CanPerform", func() {
		It("lets admins do anything", func() {
			for _, action := range []rbac.Action{
				rbac.ActionView, rbac.ActionDelete, rbac.ActionClose, rbac.ActionManageUsers,
			} {
				Expect(engine.CanPerform(admin, action, ticketOf(alice))).To(BeTrue())
			}
		})

		It("grants creators view, comment and resolve on their own tickets", func() {
			own := ticketOf(alice)
			Expect(engine.CanPerform(alice, rbac.ActionView, own)).To(BeTrue())
			Expect(engine.CanPerform(alice, rbac.ActionComment, own)).To(BeTrue())
			Expect(engine.CanPerform(alice, rbac.ActionResolve, own)).To(BeTrue())
		})

		It("denies plain users access to foreign tickets", func() {
			foreign := ticketOf(alice)
			Expect(engine.CanPerform(bob, rbac.ActionView, foreign)).To(BeFalse())
			Expect(engine.CanPerform(bob, rbac.ActionComment, foreign)).To(BeFalse())
			Expect(engine.CanPerform(bob, rbac.ActionResolve, foreign)).To(BeFalse())
		})

		It("lets agents view and resolve any ticket but never delete", func() {
			foreign := ticketOf(alice)
			Expect(engine.CanPerform(agent, rbac.ActionView, foreign)).To(BeTrue())
			Expect(engine.CanPerform(agent, rbac.ActionResolve, foreign)).To(BeTrue())
			Expect(engine.CanPerform(agent, rbac.ActionClose, foreign)).To(BeTrue())
			Expect(engine.CanPerform(agent, rbac.ActionDelete, foreign)).To(BeFalse())
		})

		It("keeps delete admin-only even for the creator", func() {
			Expect(engine.CanPerform(alice, rbac.ActionDelete, ticketOf(alice))).To(BeFalse())
		})

		Context("when self-delete is enabled", func() {
			BeforeEach(func() {
				engine = rbac.NewEngine(true)
			})

			It("lets creators delete their own tickets only", func() {
				Expect(engine.CanPerform(alice, rbac.ActionDelete, ticketOf(alice))).To(BeTrue())
				Expect(engine.CanPerform(bob, rbac.ActionDelete, ticketOf(alice))).To(BeFalse())
				Expect(engine.CanPerform(agent, rbac.ActionDelete, ticketOf(alice))).To(BeFalse())
			})
		})

		It("denies user management to non-admins", func() {
			Expect(engine.CanPerform(agent, rbac.ActionManageUsers, nil)).To(BeFalse())
			Expect(engine.CanPerform(alice, rbac.ActionManageUsers, nil)).To(BeFalse())
		})

		It("treats an unknown role as a plain user", func() {
			stranger := domain.Actor{UserID: 9, Username: "x", Role: domain.Role("supervisor")}
			Expect(engine.CanPerform(stranger, rbac.ActionView, ticketOf(alice))).To(BeFalse())
			Expect(engine.CanPerform(stranger, rbac.ActionViewDashboard, nil)).To(BeTrue())
		})
	})

	Describe("CanApplyChange", func() {
		resolved := domain.TicketStatusResolved
		closed := domain.TicketStatusClosed
		open := domain.TicketStatusOpen

		It("lets admins change anything", func() {
			change := rbac.TicketChange{Title: true, Status: &open, Assignee: true}
			Expect(engine.CanApplyChange(admin, ticketOf(alice), change)).To(BeTrue())
		})

		It("keeps content fields admin-only", func() {
			Expect(engine.CanApplyChange(agent, ticketOf(alice), rbac.TicketChange{Title: true})).To(BeFalse())
			Expect(engine.CanApplyChange(alice, ticketOf(alice), rbac.TicketChange{Description: true})).To(BeFalse())
			Expect(engine.CanApplyChange(agent, ticketOf(alice), rbac.TicketChange{Priority: true})).To(BeFalse())
		})

		It("lets creators resolve their own tickets", func() {
			change := rbac.TicketChange{Status: &resolved}
			Expect(engine.CanApplyChange(alice, ticketOf(alice), change)).To(BeTrue())
		})

		It("blocks users from resolving foreign tickets", func() {
			change := rbac.TicketChange{Status: &resolved}
			Expect(engine.CanApplyChange(bob, ticketOf(alice), change)).To(BeFalse())
		})

		It("lets agents resolve and close foreign tickets", func() {
			Expect(engine.CanApplyChange(agent, ticketOf(alice), rbac.TicketChange{Status: &resolved})).To(BeTrue())
			Expect(engine.CanApplyChange(agent, ticketOf(alice), rbac.TicketChange{Status: &closed})).To(BeTrue())
		})

		It("blocks creators from closing their own tickets", func() {
			change := rbac.TicketChange{Status: &closed}
			Expect(engine.CanApplyChange(alice, ticketOf(alice), change)).To(BeFalse())
		})

		It("keeps reopening admin-only", func() {
			change := rbac.TicketChange{Status: &open}
			Expect(engine.CanApplyChange(agent, ticketOf(alice), change)).To(BeFalse())
			Expect(engine.CanApplyChange(alice, ticketOf(alice), change)).To(BeFalse())
		})

		It("ties assignment to the edit-all capability", func() {
			Expect(engine.CanApplyChange(agent, ticketOf(alice), rbac.TicketChange{Assignee: true})).To(BeTrue())
			Expect(engine.CanApplyChange(alice, ticketOf(alice), rbac.TicketChange{Assignee: true})).To(BeFalse())
		})

		It("ties the repeat flag to the mark-repeat capability", func() {
			Expect(engine.CanApplyChange(agent, ticketOf(alice), rbac.TicketChange{IsRepeat: true})).To(BeTrue())
			Expect(engine.CanApplyChange(alice, ticketOf(alice), rbac.TicketChange{IsRepeat: true})).To(BeFalse())
		})

		It("fails the whole change when one touched field is denied", func() {
			change := rbac.TicketChange{Status: &resolved, Title: true}
			Expect(engine.CanApplyChange(agent, ticketOf(alice), change)).To(BeFalse())
		})
	})
})
