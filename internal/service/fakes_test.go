package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/supportdesk/internal/cache"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/mail"
	"github.com/spec-kit/supportdesk/internal/repository"
)

type memoryStore struct {
	mu         sync.Mutex
	tickets    map[int64]*domain.Ticket
	replies    map[int64]*domain.Reply
	principals map[int64]*domain.Principal
	settings   *domain.Settings
	nextID     int64
	now        time.Time

	failReplyCreate bool
	failAnonymize   map[int64]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tickets:       map[int64]*domain.Ticket{},
		replies:       map[int64]*domain.Reply{},
		principals:    map[int64]*domain.Principal{},
		failAnonymize: map[int64]bool{},
		now:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) addPrincipal(name, email string, roles ...domain.Role) *domain.Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &domain.Principal{ID: m.id(), DisplayName: name, Email: email, Roles: roles}
	m.principals[p.ID] = p
	cp := *p
	return &cp
}

func (m *memoryStore) addTicket(t domain.Ticket) *domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	if t.Status == "" {
		t.Status = domain.TicketStatusNew
	}
	if t.Priority == "" {
		t.Priority = domain.TicketPriorityNormal
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now
	}
	t.UpdatedAt = t.CreatedAt
	m.tickets[t.ID] = &t
	cp := t
	return &cp
}

func (m *memoryStore) addReply(ticketID, authorID int64, body string) *domain.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &domain.Reply{ID: m.id(), TicketID: ticketID, AuthorID: authorID, Body: body, CreatedAt: m.now}
	m.replies[r.ID] = r
	cp := *r
	return &cp
}

func (m *memoryStore) ticket(id int64) (domain.Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return domain.Ticket{}, false
	}
	return *t, true
}

func (m *memoryStore) thread(ticketID int64) []domain.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reply
	for _, r := range m.replies {
		if r.TicketID == ticketID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryStore) ticketRepo() repository.TicketRepository       { return (*ticketFake)(m) }
func (m *memoryStore) replyRepo() repository.ReplyRepository         { return (*replyFake)(m) }
func (m *memoryStore) principalRepo() repository.PrincipalRepository { return (*principalFake)(m) }
func (m *memoryStore) settingsRepo() repository.SettingsRepository   { return (*settingsFake)(m) }

type ticketFake memoryStore

func (f *ticketFake) Create(_ context.Context, t *domain.Ticket) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	t.CreatedAt, t.UpdatedAt = m.now, m.now
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (f *ticketFake) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	t, ok := (*memoryStore)(f).ticket(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (f *ticketFake) matching(filter repository.TicketFilter) []domain.Ticket {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ticket
	for _, t := range m.tickets {
		if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.HandlerID != nil {
			h := *filter.HandlerID
			if !(t.AssigneeID == nil || *t.AssigneeID == h || t.OwnerID == h) {
				continue
			}
		}
		if filter.AssigneeID != nil && !t.IsAssignedTo(*filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				found = found || s == t.Status
			}
			if !found {
				continue
			}
		}
		if filter.CreatedBefore != nil && !t.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		if filter.ExcludeAnonymized && t.AnonymizedAt != nil {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *ticketFake) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	all := f.matching(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if filter.Offset >= len(all) {
		return nil, nil
	}
	end := filter.Offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

func (f *ticketFake) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	return len(f.matching(filter)), nil
}

func (f *ticketFake) UpdateFields(_ context.Context, id int64, update repository.TicketFieldsUpdate) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.Priority != nil {
		t.Priority = *update.Priority
	}
	t.UpdatedAt = m.now
	return nil
}

func (f *ticketFake) UpdateAssignee(_ context.Context, id int64, assigneeID *int64) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if assigneeID == nil {
		t.AssigneeID = nil
	} else {
		v := *assigneeID
		t.AssigneeID = &v
	}
	return nil
}

func (f *ticketFake) Anonymize(_ context.Context, id int64, at time.Time) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAnonymize[id] {
		return errors.New("anonymize failed")
	}
	t, ok := m.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.OwnerID = domain.AnonymousPrincipalID
	t.Subject = domain.AnonymizedSubject
	t.CustomerName = domain.AnonymizedName
	t.CustomerEmail = domain.AnonymizedEmail
	t.AnonymizedAt = &at
	return nil
}

func (f *ticketFake) Delete(_ context.Context, id int64) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.tickets, id)
	return nil
}

func (f *ticketFake) CountsByAssignee(_ context.Context, assigneeID int64) (domain.TicketCounts, error) {
	var counts domain.TicketCounts
	for _, t := range f.matching(repository.TicketFilter{AssigneeID: &assigneeID}) {
		counts.Assigned++
		switch t.Status {
		case domain.TicketStatusNew:
			counts.New++
		case domain.TicketStatusInProgress:
			counts.InProgress++
		case domain.TicketStatusResolved:
			counts.Resolved++
		}
	}
	return counts, nil
}

type replyFake memoryStore

func (f *replyFake) Create(_ context.Context, r *domain.Reply) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReplyCreate {
		return errors.New("reply store unavailable")
	}
	r.ID = m.id()
	r.CreatedAt = m.now
	cp := *r
	m.replies[r.ID] = &cp
	return nil
}

func (f *replyFake) ListByTicket(_ context.Context, ticketID int64, newestFirst bool) ([]domain.Reply, error) {
	out := (*memoryStore)(f).thread(ticketID)
	if newestFirst {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	return out, nil
}

func (f *replyFake) ListByAuthor(_ context.Context, authorID int64) ([]domain.Reply, error) {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reply
	for _, r := range m.replies {
		if r.AuthorID == authorID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *replyFake) DeleteByTicket(_ context.Context, ticketID int64) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.replies {
		if r.TicketID == ticketID {
			delete(m.replies, id)
		}
	}
	return nil
}

func (f *replyFake) ReassignAuthor(_ context.Context, ticketID *int64, fromID, toID int64) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.replies {
		if r.AuthorID == fromID && (ticketID == nil || r.TicketID == *ticketID) {
			r.AuthorID = toID
		}
	}
	return nil
}

type principalFake memoryStore

func (f *principalFake) Create(_ context.Context, p *domain.Principal) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	cp := *p
	m.principals[p.ID] = &cp
	return nil
}

func (f *principalFake) GetByID(_ context.Context, id int64) (*domain.Principal, error) {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *principalFake) GetByEmail(_ context.Context, email string) (*domain.Principal, error) {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.principals {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *principalFake) ListByRoles(_ context.Context, roles []domain.Role) ([]domain.Principal, error) {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Principal
	for _, p := range m.principals {
		for _, role := range roles {
			if p.HasRole(role) {
				out = append(out, *p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *principalFake) SetRoles(_ context.Context, id int64, roles []domain.Role) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Roles = append([]domain.Role(nil), roles...)
	return nil
}

type settingsFake memoryStore

func (f *settingsFake) Load(context.Context) (*domain.Settings, error) {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, repository.ErrNotFound
	}
	cp := *m.settings
	return &cp, nil
}

func (f *settingsFake) Save(_ context.Context, s *domain.Settings) error {
	m := (*memoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.settings = &cp
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingMailer) messages() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.sent...)
}

type recordingCounts struct {
	mu          sync.Mutex
	entries     map[int64]domain.TicketCounts
	invalidated []int64
}

func newRecordingCounts() *recordingCounts {
	return &recordingCounts{entries: map[int64]domain.TicketCounts{}}
}

func (c *recordingCounts) Get(_ context.Context, id int64) (domain.TicketCounts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts, ok := c.entries[id]
	if !ok {
		return domain.TicketCounts{}, cache.ErrMiss
	}
	return counts, nil
}

func (c *recordingCounts) Set(_ context.Context, id int64, counts domain.TicketCounts) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = counts
	return nil
}

func (c *recordingCounts) Invalidate(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}
