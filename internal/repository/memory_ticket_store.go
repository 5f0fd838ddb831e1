package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quickqueue/helpdesk/internal/domain"
)

// MemoryTicketStore keeps tickets and comments in process memory. It
// implements both TicketRepository and CommentRepository so that ticket
// deletion can cascade to comments under a single lock. Id counters are
// monotonic and never reused.
type MemoryTicketStore struct {
	mu            sync.RWMutex
	tickets       map[int64]*domain.Ticket
	order         []int64
	comments      map[int64][]domain.Comment
	nextTicketID  int64
	nextCommentID int64

	now func() time.Time
}

// NewMemoryTicketStore builds an empty store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{
		tickets:  make(map[int64]*domain.Ticket),
		comments: make(map[int64][]domain.Comment),
		now:      time.Now,
	}
}

func (s *MemoryTicketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTicketID++
	ticket.ID = s.nextTicketID
	ticket.CreatedAt = s.now()
	ticket.UpdatedAt = nil

	s.tickets[ticket.ID] = ticket.Clone()
	s.order = append(s.order, ticket.ID)
	return nil
}

func (s *MemoryTicketStore) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ticket.Clone(), nil
}

func (s *MemoryTicketStore) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(filter.TitleContains))

	matched := make([]domain.Ticket, 0, len(s.order))
	for _, id := range s.order {
		ticket := s.tickets[id]
		if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && ticket.Priority != *filter.Priority {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(ticket.Title), term) {
			continue
		}
		matched = append(matched, *ticket.Clone())
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (s *MemoryTicketStore) ListRecent(_ context.Context, limit int) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}

	all := make([]domain.Ticket, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, *s.tickets[id].Clone())
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryTicketStore) Update(_ context.Context, id int64, patch TicketPatch) (*domain.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, false, ErrNotFound
	}

	next := ticket.Clone()
	changed := applyTicketPatch(next, patch)
	if changed {
		ts := s.now()
		next.UpdatedAt = &ts
		s.tickets[id] = next
	}
	return next.Clone(), changed, nil
}

func (s *MemoryTicketStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[id]; !ok {
		return false, nil
	}
	delete(s.tickets, id)
	delete(s.comments, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *MemoryTicketStore) CountByStatus(_ context.Context, year int, month time.Month) (map[domain.TicketStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.TicketStatus]int64)
	for _, ticket := range s.tickets {
		if !inWindow(ticket.CreatedAt, year, month) {
			continue
		}
		counts[ticket.Status]++
	}
	return counts, nil
}

func (s *MemoryTicketStore) CountByPriority(_ context.Context, year int, month time.Month) (map[domain.TicketPriority]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.TicketPriority]int64)
	for _, ticket := range s.tickets {
		if !inWindow(ticket.CreatedAt, year, month) {
			continue
		}
		counts[ticket.Priority]++
	}
	return counts, nil
}

func (s *MemoryTicketStore) CountByMonth(_ context.Context, year int) (map[time.Month]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[time.Month]int64)
	for _, ticket := range s.tickets {
		if ticket.CreatedAt.Year() != year {
			continue
		}
		counts[ticket.CreatedAt.Month()]++
	}
	return counts, nil
}

func (s *MemoryTicketStore) CountRepeat(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, ticket := range s.tickets {
		if ticket.IsRepeat {
			count++
		}
	}
	return count, nil
}

// CreateComment implements CommentRepository.Create.
func (s *MemoryTicketStore) CreateComment(_ context.Context, comment *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[comment.TicketID]; !ok {
		return ErrNotFound
	}
	s.nextCommentID++
	comment.ID = s.nextCommentID
	comment.CreatedAt = s.now()
	s.comments[comment.TicketID] = append(s.comments[comment.TicketID], *comment)
	return nil
}

// ListCommentsByTicket implements CommentRepository.ListByTicket.
func (s *MemoryTicketStore) ListCommentsByTicket(_ context.Context, ticketID int64) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tickets[ticketID]; !ok {
		return nil, ErrNotFound
	}
	stored := s.comments[ticketID]
	result := append([]domain.Comment(nil), stored...)
	// newest first, created-at ties resolve to the later insertion
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Comments adapts the store to the CommentRepository interface.
func (s *MemoryTicketStore) Comments() CommentRepository {
	return memoryCommentView{store: s}
}

type memoryCommentView struct {
	store *MemoryTicketStore
}

func (v memoryCommentView) Create(ctx context.Context, comment *domain.Comment) error {
	return v.store.CreateComment(ctx, comment)
}

func (v memoryCommentView) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error) {
	return v.store.ListCommentsByTicket(ctx, ticketID)
}

func inWindow(ts time.Time, year int, month time.Month) bool {
	if year > 0 && ts.Year() != year {
		return false
	}
	if month > 0 && ts.Month() != month {
		return false
	}
	return true
}
