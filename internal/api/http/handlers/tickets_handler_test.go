package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/quickqueue/helpdesk/internal/domain"
	"github.com/quickqueue/helpdesk/internal/service"
)

func captureListQuery(t *testing.T, target string) service.TicketListInput {
	t.Helper()
	var got service.TicketListInput
	app := fiber.New()
	app.Get("/tickets", func(c *fiber.Ctx) error {
		got = parseTicketListQuery(c)
		return nil
	})
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	return got
}

func TestListQueryReadsSearchParam(t *testing.T) {
	got := captureListQuery(t, "/tickets?q=login")
	if got.TitleContains != "login" {
		t.Fatalf("TitleContains = %q, want %q", got.TitleContains, "login")
	}
}

func TestListQueryTitleAliasStillWorks(t *testing.T) {
	got := captureListQuery(t, "/tickets?title=vpn")
	if got.TitleContains != "vpn" {
		t.Fatalf("TitleContains = %q, want %q", got.TitleContains, "vpn")
	}
}

func TestListQuerySearchParamWinsOverAlias(t *testing.T) {
	got := captureListQuery(t, "/tickets?q=login&title=vpn")
	if got.TitleContains != "login" {
		t.Fatalf("TitleContains = %q, want %q", got.TitleContains, "login")
	}
}

func TestListQueryFiltersAndPaging(t *testing.T) {
	got := captureListQuery(t, "/tickets?status=open&priority=high&page=2&page_size=5")
	if got.Status == nil || *got.Status != domain.TicketStatusOpen {
		t.Fatalf("Status = %v, want open", got.Status)
	}
	if got.Priority == nil || *got.Priority != domain.TicketPriorityHigh {
		t.Fatalf("Priority = %v, want high", got.Priority)
	}
	if got.Page != 2 || got.PageSize != 5 {
		t.Fatalf("page = %d size = %d, want 2 and 5", got.Page, got.PageSize)
	}
}
