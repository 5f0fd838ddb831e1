package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quickqueue/helpdesk/internal/config"
	"github.com/quickqueue/helpdesk/internal/domain"
	"github.com/quickqueue/helpdesk/internal/rbac"
	"github.com/quickqueue/helpdesk/internal/repository"
	"github.com/quickqueue/helpdesk/internal/service"
)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
		},
		Seed: config.SeedConfig{
			AdminUsername: "admin",
			AdminPassword: "admin123",
			AgentUsername: "agent",
			AgentPassword: "agent123",
			UserUsername:  "user",
			UserPassword:  "user123",
		},
	}
}

var _ = Describe("AuthService", func() {
	var (
		ctx   context.Context
		users *repository.MemoryUserStore
		svc   *service.AuthService

		admin domain.Actor
		agent domain.Actor
	)

	BeforeEach(func() {
		ctx = context.Background()
		users = repository.NewMemoryUserStore()
		svc = service.NewAuthService(testConfig(), users, rbac.NewEngine(false))
		Expect(svc.SeedAccounts(ctx, zap.NewNop())).To(Succeed())

		admin = domain.Actor{UserID: 1, Username: "admin", Role: domain.RoleAdmin}
		agent = domain.Actor{UserID: 2, Username: "agent", Role: domain.RoleAgent}
	})

	Describe("SeedAccounts", func() {
		It("provisions one account per role", func() {
			for _, tc := range []struct {
				username string
				role     domain.Role
			}{
				{"admin", domain.RoleAdmin},
				{"agent", domain.RoleAgent},
				{"user", domain.RoleUser},
			} {
				user, err := svc.Authenticate(ctx, tc.username, tc.username+"123")
				Expect(err).NotTo(HaveOccurred())
				Expect(user.Role).To(Equal(tc.role))
			}
		})

		It("is idempotent", func() {
			Expect(svc.SeedAccounts(ctx, zap.NewNop())).To(Succeed())
			accounts, err := svc.ListUsers(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(accounts).To(HaveLen(3))
		})
	})

	Describe("Authenticate", func() {
		It("collapses every failure into the same error", func() {
			_, missingErr := svc.Authenticate(ctx, "nobody", "whatever")
			_, wrongErr := svc.Authenticate(ctx, "admin", "wrong")
			Expect(codeOf(missingErr)).To(Equal("INVALID_CREDENTIALS"))
			Expect(codeOf(wrongErr)).To(Equal("INVALID_CREDENTIALS"))

			_, err := svc.DeactivateUser(ctx, admin, 3)
			Expect(err).NotTo(HaveOccurred())
			_, inactiveErr := svc.Authenticate(ctx, "user", "user123")
			Expect(codeOf(inactiveErr)).To(Equal("INVALID_CREDENTIALS"))
		})
	})

	Describe("Login", func() {
		It("issues a parseable token", func() {
			user, token, _, err := svc.Login(ctx, "agent", "agent123")
			Expect(err).NotTo(HaveOccurred())

			claims, err := svc.TokenManager().ParseToken(token)
			Expect(err).NotTo(HaveOccurred())
			id, err := claims.UserID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(user.ID))
			Expect(claims.Role).To(Equal(domain.RoleAgent))
		})
	})

	Describe("Register", func() {
		It("always creates a plain user", func() {
			user, err := svc.Register(ctx, "dave", "Dave", "dave@example.com", "longenough")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Role).To(Equal(domain.RoleUser))
			Expect(user.Active).To(BeTrue())
		})

		It("rejects short passwords", func() {
			_, err := svc.Register(ctx, "eve", "Eve", "", "short")
			Expect(codeOf(err)).To(Equal("VALIDATION_FAILED"))
		})

		It("rejects a taken username", func() {
			_, err := svc.Register(ctx, "admin", "", "", "longenough")
			Expect(codeOf(err)).To(Equal("CONFLICT"))
		})
	})

	Describe("user management", func() {
		It("is admin-only", func() {
			_, err := svc.ListUsers(ctx, agent)
			Expect(codeOf(err)).To(Equal("FORBIDDEN"))

			_, err = svc.CreateUser(ctx, agent, service.RegisterInput{
				Username: "x", Password: "longenough",
			})
			Expect(codeOf(err)).To(Equal("FORBIDDEN"))

			Expect(codeOf(svc.DeleteUser(ctx, agent, 3))).To(Equal("FORBIDDEN"))
		})

		It("creates accounts with explicit roles", func() {
			user, err := svc.CreateUser(ctx, admin, service.RegisterInput{
				Username: "newagent",
				Password: "longenough",
				Role:     domain.RoleAgent,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Role).To(Equal(domain.RoleAgent))
		})

		It("refuses to delete seed accounts", func() {
			Expect(codeOf(svc.DeleteUser(ctx, admin, 1))).To(Equal("PROTECTED_ACCOUNT"))
			Expect(codeOf(svc.DeleteUser(ctx, admin, 3))).To(Equal("PROTECTED_ACCOUNT"))
		})

		It("deletes regular accounts", func() {
			user, err := svc.Register(ctx, "temp", "", "", "longenough")
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.DeleteUser(ctx, admin, user.ID)).To(Succeed())
		})
	})

	Describe("ChangePassword", func() {
		It("requires the current password", func() {
			actor := domain.Actor{UserID: 3, Username: "user", Role: domain.RoleUser}
			err := svc.ChangePassword(ctx, actor, "wrong", "newpassword")
			Expect(codeOf(err)).To(Equal("INVALID_CREDENTIALS"))

			Expect(svc.ChangePassword(ctx, actor, "user123", "newpassword")).To(Succeed())
			_, err = svc.Authenticate(ctx, "user", "newpassword")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Authenticate(ctx, "user", "user123")
			Expect(codeOf(err)).To(Equal("INVALID_CREDENTIALS"))
		})
	})
})
