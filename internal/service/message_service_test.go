package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/portfolio/backend/internal/cipher"
	"github.com/portfolio/backend/internal/filter"
	"github.com/portfolio/backend/internal/model"
	"github.com/portfolio/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// test doubles
// ---------------------------------------------------------------------------

type captureSender struct {
	mu   sync.Mutex
	err  error
	sent []*model.Message
	// state of each notification context at call time
	ctxErrs      []error
	hadDeadlines []bool
}

func (s *captureSender) NotifyNewMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	_, ok := ctx.Deadline()
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.hadDeadlines = append(s.hadDeadlines, ok)
	return s.err
}

// failingRepo fails every call it overrides; the embedded nil interface
// panics on anything else so tests notice unexpected calls.
type failingRepo struct {
	repository.MessageRepository
	err error
}

func (r *failingRepo) Create(context.Context, *model.Message) error { return r.err }
func (r *failingRepo) List(context.Context, filter.Criteria, model.Page) ([]*model.Message, int, error) {
	return nil, 0, r.err
}
func (r *failingRepo) ListAll(context.Context, filter.Criteria, int) ([]*model.Message, error) {
	return nil, r.err
}
func (r *failingRepo) FindByID(context.Context, string) (*model.Message, error) { return nil, r.err }

// stepClock returns base, base+1m, base+2m, ...
func stepClock(base time.Time) func() time.Time {
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := base.Add(time.Duration(n) * time.Minute)
		n++
		return t
	}
}

type fixture struct {
	svc    *MessageServiceImpl
	repo   *repository.MemoryMessageRepository
	sender *captureSender
}

func newFixture(t *testing.T, opts ...MessageOption) *fixture {
	t.Helper()
	c, err := cipher.New("service-test-secret")
	if err != nil {
		t.Fatalf("cipher.New: %v", err)
	}
	repo := repository.NewMemoryMessageRepository(c)
	sender := &captureSender{}
	opts = append([]MessageOption{WithClock(stepClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))}, opts...)
	return &fixture{svc: NewMessageService(repo, sender, opts...), repo: repo, sender: sender}
}

func (f *fixture) create(t *testing.T, name string) *model.Message {
	t.Helper()
	res, err := f.svc.Create(context.Background(), model.NewMessage{
		Name:    name,
		Email:   name + "@example.com",
		Message: "hello from " + name,
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return res.Message
}

func validInput() model.NewMessage {
	return model.NewMessage{
		Name:      "  Ada Lovelace ",
		Email:     "ada@example.com",
		Phone:     "+44 20 7946 0000",
		Message:   " I'd like to talk about engines. ",
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestMessageService_Create_Defaults(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := res.Message
	if msg.ID == "" {
		t.Error("expected an id to be assigned")
	}
	if msg.Read || msg.Starred {
		t.Errorf("expected read=false starred=false, got %v %v", msg.Read, msg.Starred)
	}
	if msg.Tags == nil || len(msg.Tags) != 0 {
		t.Errorf("expected empty tag set, got %v", msg.Tags)
	}
	if msg.Name != "Ada Lovelace" || msg.Message != "I'd like to talk about engines." {
		t.Errorf("expected trimmed fields, got %q / %q", msg.Name, msg.Message)
	}
	if !msg.CreatedAt.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected createdAt %v", msg.CreatedAt)
	}
	if res.NotificationDelayed {
		t.Error("expected NotificationDelayed=false")
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].ID != msg.ID {
		t.Errorf("expected one notification for %s", msg.ID)
	}
}

func TestMessageService_Create_EncryptsAtRest(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	res, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, ok := f.repo.StoredFields(res.Message.ID)
	if !ok {
		t.Fatal("expected stored row")
	}
	for i, plain := range []string{in.Email, in.Phone, "I'd like to talk about engines.", in.IPAddress} {
		if stored[i] == plain || stored[i] == "" {
			t.Errorf("field %d stored as %q, expected ciphertext", i, stored[i])
		}
	}

	got, err := f.svc.GetByID(context.Background(), res.Message.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != in.Email || got.Phone != in.Phone || got.IPAddress != in.IPAddress {
		t.Errorf("expected decrypted round trip, got %+v", got)
	}
}

func TestMessageService_Create_Validation(t *testing.T) {
	long := func(n int) string {
		b := make([]rune, n)
		for i := range b {
			b[i] = 'é'
		}
		return string(b)
	}
	tests := []struct {
		name   string
		mutate func(*model.NewMessage)
		field  string
		code   string
	}{
		{"empty name", func(m *model.NewMessage) { m.Name = "   " }, "name", "name_required"},
		{"long name", func(m *model.NewMessage) { m.Name = long(101) }, "name", "name_too_long"},
		{"empty email", func(m *model.NewMessage) { m.Email = "" }, "email", "email_required"},
		{"no at sign", func(m *model.NewMessage) { m.Email = "ada.example.com" }, "email", "email_invalid"},
		{"no dot", func(m *model.NewMessage) { m.Email = "ada@example" }, "email", "email_invalid"},
		{"space in email", func(m *model.NewMessage) { m.Email = "ada lovelace@example.com" }, "email", "email_invalid"},
		{"empty message", func(m *model.NewMessage) { m.Message = "\n\t" }, "message", "message_required"},
		{"long message", func(m *model.NewMessage) { m.Message = long(5001) }, "message", "message_too_long"},
		{"long phone", func(m *model.NewMessage) { m.Phone = long(31) }, "phone", "phone_too_long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tt.mutate(&in)

			_, err := f.svc.Create(context.Background(), in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field || ve.Code != tt.code {
				t.Errorf("expected %s/%s, got %s/%s", tt.field, tt.code, ve.Field, ve.Code)
			}
			if n, _ := f.repo.Count(context.Background()); n != 0 {
				t.Errorf("expected nothing persisted, got %d rows", n)
			}
			if len(f.sender.sent) != 0 {
				t.Error("expected no notification")
			}
		})
	}
}

func TestMessageService_Create_MessageAtLimitAccepted(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	b := make([]rune, 5000)
	for i := range b {
		b[i] = 'x'
	}
	in.Message = string(b)
	if _, err := f.svc.Create(context.Background(), in); err != nil {
		t.Fatalf("expected 5000-rune message to be accepted, got %v", err)
	}
}

func TestMessageService_Create_NotificationFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("smtp down")

	res, err := f.svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	if !res.NotificationDelayed {
		t.Error("expected NotificationDelayed=true")
	}
	if _, err := f.svc.GetByID(context.Background(), res.Message.ID); err != nil {
		t.Errorf("expected message to be persisted, got %v", err)
	}
}

func TestMessageService_Create_NotificationSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t, WithNotifyTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Create(ctx, validInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.sender.ctxErrs[0]; err != nil {
		t.Errorf("expected live notification context, got %v", err)
	}
	if !f.sender.hadDeadlines[0] {
		t.Error("expected notification context to carry a deadline")
	}
}

func TestMessageService_Create_PersistenceError(t *testing.T) {
	boom := errors.New("disk full")
	sender := &captureSender{}
	svc := NewMessageService(&failingRepo{err: boom}, sender)

	_, err := svc.Create(context.Background(), validInput())
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("expected PersistenceError to wrap the cause")
	}
	if len(sender.sent) != 0 {
		t.Error("expected no notification when persistence fails")
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestMessageService_List_Pagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		f.create(t, fmt.Sprintf("user%02d", i))
	}
	ctx := context.Background()

	p1, err := f.svc.List(ctx, filter.Criteria{}, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if p1.Total != 25 || p1.TotalPages != 3 || p1.CurrentPage != 1 || len(p1.Data) != 10 {
		t.Errorf("unexpected page 1: total=%d pages=%d current=%d len=%d", p1.Total, p1.TotalPages, p1.CurrentPage, len(p1.Data))
	}
	if p1.Data[0].Name != "user24" {
		t.Errorf("expected newest first, got %s", p1.Data[0].Name)
	}

	p3, _ := f.svc.List(ctx, filter.Criteria{}, 3, 10)
	if len(p3.Data) != 5 || p3.Data[4].Name != "user00" {
		t.Errorf("unexpected page 3: %d items", len(p3.Data))
	}

	p4, err := f.svc.List(ctx, filter.Criteria{}, 4, 10)
	if err != nil {
		t.Fatalf("List page 4: %v", err)
	}
	if len(p4.Data) != 0 || p4.Total != 25 {
		t.Errorf("expected empty page beyond range, got %d items", len(p4.Data))
	}
}

func TestMessageService_List_HugePageIsEmpty(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.create(t, fmt.Sprintf("user%d", i))
	}
	ctx := context.Background()

	for _, tc := range []struct{ page, size int }{
		{1 << 62, 10},
		{math.MaxInt, 100},
		{math.MaxInt/10 + 2, 10},
	} {
		p, err := f.svc.List(ctx, filter.Criteria{}, tc.page, tc.size)
		if err != nil {
			t.Fatalf("List page %d: %v", tc.page, err)
		}
		if len(p.Data) != 0 || p.Total != 3 || p.CurrentPage != tc.page {
			t.Errorf("page %d: expected empty data with total 3, got len=%d total=%d current=%d",
				tc.page, len(p.Data), p.Total, p.CurrentPage)
		}
	}

	// The same holds when a search forces the decrypted scan.
	p, err := f.svc.List(ctx, filter.Criteria{Search: "user"}, 1<<62, 10)
	if err != nil {
		t.Fatalf("List with search: %v", err)
	}
	if len(p.Data) != 0 || p.Total != 3 {
		t.Errorf("expected empty searched page, got len=%d total=%d", len(p.Data), p.Total)
	}
}

func TestMessageService_List_Defaults(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.create(t, fmt.Sprintf("u%d", i))
	}

	page, err := f.svc.List(context.Background(), filter.Criteria{}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.CurrentPage != 1 || len(page.Data) != 10 || page.TotalPages != 2 {
		t.Errorf("expected defaults page=1 size=10, got current=%d len=%d pages=%d", page.CurrentPage, len(page.Data), page.TotalPages)
	}

	page, _ = f.svc.List(context.Background(), filter.Criteria{}, 1, 1000)
	if len(page.Data) != 12 || page.TotalPages != 1 {
		t.Errorf("expected pageSize clamped to %d, got len=%d pages=%d", maxPageSize, len(page.Data), page.TotalPages)
	}
}

func TestMessageService_List_EmptyStore(t *testing.T) {
	f := newFixture(t)
	page, err := f.svc.List(context.Background(), filter.Criteria{}, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Data == nil || len(page.Data) != 0 || page.Total != 0 || page.TotalPages != 0 {
		t.Errorf("unexpected empty page %+v", page)
	}
}

func TestMessageService_List_Filters(t *testing.T) {
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return base }))
	ctx := context.Background()

	a := f.create(t, "alpha")
	b := f.create(t, "bravo")
	f.create(t, "charlie")

	if _, err := f.svc.SetRead(ctx, a.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SetStarred(ctx, b.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateTags(ctx, b.ID, model.TagAdd, []string{"lead"}); err != nil {
		t.Fatal(err)
	}

	yes, no := true, false
	tests := []struct {
		name string
		c    filter.Criteria
		want int
	}{
		{"read", filter.Criteria{Read: &yes}, 1},
		{"unread", filter.Criteria{Read: &no}, 2},
		{"starred", filter.Criteria{Starred: &yes}, 1},
		{"tag", filter.Criteria{Tag: "lead"}, 1},
		{"search email", filter.Criteria{Search: "CHARLIE@example"}, 1},
		{"search message", filter.Criteria{Search: "hello from"}, 3},
		{"search miss", filter.Criteria{Search: "zulu"}, 0},
		{"combined", filter.Criteria{Starred: &yes, Read: &no, Search: "bravo"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.svc.List(ctx, tt.c, 1, 10)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if page.Total != tt.want {
				t.Errorf("expected %d matches, got %d", tt.want, page.Total)
			}
		})
	}
}

func TestMessageService_List_DateRangeIncludesWholeEndDay(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 1, 14, 23, 59, 59, 0, time.UTC),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 23, 59, 59, 999_000_000, time.UTC),
		time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
	}
	i := 0
	f := newFixture(t, WithClock(func() time.Time { ts := times[i]; i++; return ts }))
	for range times {
		f.create(t, "x")
	}

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	page, err := f.svc.List(context.Background(), filter.Criteria{DateFrom: &day, DateTo: &day}, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected the two jan-15 messages, got %d", page.Total)
	}
	for _, m := range page.Data {
		if m.CreatedAt.Day() != 15 {
			t.Errorf("unexpected message at %v", m.CreatedAt)
		}
	}
}

func TestMessageService_List_PersistenceError(t *testing.T) {
	svc := NewMessageService(&failingRepo{err: errors.New("conn reset")}, nil)
	_, err := svc.List(context.Background(), filter.Criteria{}, 1, 10)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "list" {
		t.Errorf("expected list PersistenceError, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetByID / MarkViewed / flags
// ---------------------------------------------------------------------------

func TestMessageService_GetByID_HasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "ada")

	got, err := f.svc.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Read {
		t.Error("expected GetByID to leave read=false")
	}
	again, _ := f.svc.GetByID(context.Background(), m.ID)
	if again.Read {
		t.Error("expected read to remain false")
	}
}

func TestMessageService_MarkViewed(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "ada")

	got, err := f.svc.MarkViewed(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	if !got.Read {
		t.Error("expected message to be marked read")
	}
	stored, _ := f.svc.GetByID(context.Background(), m.ID)
	if !stored.Read {
		t.Error("expected read flag to persist")
	}
}

func TestMessageService_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"00000000-0000-0000-0000-000000000000", "not-a-uuid", ""} {
		if _, err := f.svc.GetByID(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByID(%q): expected ErrNotFound, got %v", id, err)
		}
		if _, err := f.svc.MarkViewed(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("MarkViewed(%q): expected ErrNotFound, got %v", id, err)
		}
		if _, err := f.svc.SetRead(ctx, id, true); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetRead(%q): expected ErrNotFound, got %v", id, err)
		}
		if _, err := f.svc.SetStarred(ctx, id, true); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetStarred(%q): expected ErrNotFound, got %v", id, err)
		}
		if _, err := f.svc.UpdateTags(ctx, id, model.TagSet, []string{"a"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateTags(%q): expected ErrNotFound, got %v", id, err)
		}
		if err := f.svc.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestMessageService_FlagsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "ada")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := f.svc.SetStarred(ctx, m.ID, true)
		if err != nil {
			t.Fatalf("SetStarred: %v", err)
		}
		if !got.Starred {
			t.Error("expected starred=true")
		}
	}
	got, _ := f.svc.SetRead(ctx, m.ID, true)
	got, _ = f.svc.SetRead(ctx, m.ID, false)
	if got.Read {
		t.Error("expected read=false after reset")
	}
	if !got.Starred {
		t.Error("expected starred to be untouched by SetRead")
	}
}

// ---------------------------------------------------------------------------
// UpdateTags
// ---------------------------------------------------------------------------

func TestMessageService_UpdateTags(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "ada")
	ctx := context.Background()

	got, err := f.svc.UpdateTags(ctx, m.ID, model.TagAdd, []string{" lead ", "lead", "", "urgent"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !sameSet(got.Tags, []string{"lead", "urgent"}) {
		t.Errorf("after add: %v", got.Tags)
	}

	got, _ = f.svc.UpdateTags(ctx, m.ID, model.TagAdd, []string{"lead"})
	if len(got.Tags) != 2 {
		t.Errorf("expected add to be idempotent, got %v", got.Tags)
	}

	got, _ = f.svc.UpdateTags(ctx, m.ID, model.TagRemove, []string{"lead", "missing"})
	if !sameSet(got.Tags, []string{"urgent"}) {
		t.Errorf("after remove: %v", got.Tags)
	}

	got, _ = f.svc.UpdateTags(ctx, m.ID, model.TagSet, []string{"b", "a", "b"})
	if !sameSet(got.Tags, []string{"a", "b"}) {
		t.Errorf("after set: %v", got.Tags)
	}

	got, _ = f.svc.UpdateTags(ctx, m.ID, model.TagSet, nil)
	if len(got.Tags) != 0 {
		t.Errorf("expected set with no tags to clear, got %v", got.Tags)
	}
}

func TestMessageService_UpdateTags_InvalidAction(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "ada")

	_, err := f.svc.UpdateTags(context.Background(), m.ID, model.TagAction(0), []string{"x"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != "invalid_action" {
		t.Errorf("expected invalid_action ValidationError, got %v", err)
	}
}

func sameSet(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[string]bool, len(got))
	for _, g := range got {
		seen[g] = true
	}
	for _, w := range want {
		if !seen[w] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Delete / Export
// ---------------------------------------------------------------------------

func TestMessageService_Delete(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "ada")
	ctx := context.Background()

	if err := f.svc.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.GetByID(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := f.svc.Delete(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected second delete to return ErrNotFound, got %v", err)
	}
	page, _ := f.svc.List(ctx, filter.Criteria{}, 1, 10)
	if page.Total != 0 {
		t.Errorf("expected deleted message to vanish from listings, got %d", page.Total)
	}
}

func TestMessageService_Export(t *testing.T) {
	f := newFixture(t, WithExportLimit(3))
	for i := 0; i < 5; i++ {
		f.create(t, fmt.Sprintf("u%d", i))
	}
	ctx := context.Background()

	msgs, err := f.svc.Export(ctx, filter.Criteria{}, 0)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected default limit 3, got %d", len(msgs))
	}
	if msgs[0].Name != "u4" || msgs[2].Name != "u2" {
		t.Errorf("expected newest first, got %s..%s", msgs[0].Name, msgs[2].Name)
	}

	msgs, _ = f.svc.Export(ctx, filter.Criteria{}, 2)
	if len(msgs) != 2 {
		t.Errorf("expected a smaller explicit limit to apply, got %d", len(msgs))
	}

	msgs, _ = f.svc.Export(ctx, filter.Criteria{}, 10)
	if len(msgs) != 3 {
		t.Errorf("expected explicit limit to be capped at 3, got %d", len(msgs))
	}
}

func TestMessageService_Export_NothingToExport(t *testing.T) {
	f := newFixture(t)
	f.create(t, "ada")

	_, err := f.svc.Export(context.Background(), filter.Criteria{Search: "nobody"}, 0)
	if !errors.Is(err, ErrNothingToExport) {
		t.Errorf("expected ErrNothingToExport, got %v", err)
	}
}

func TestMessageService_Export_PersistenceError(t *testing.T) {
	svc := NewMessageService(&failingRepo{err: errors.New("timeout")}, nil)
	_, err := svc.Export(context.Background(), filter.Criteria{}, 0)
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("expected PersistenceError, got %v", err)
	}
	if errors.Is(err, ErrNothingToExport) {
		t.Error("storage failure must not look like an empty export")
	}
}

func TestMessageService_GetByID_PersistenceError(t *testing.T) {
	svc := NewMessageService(&failingRepo{err: errors.New("timeout")}, nil)
	_, err := svc.GetByID(context.Background(), "x")
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("expected PersistenceError, got %v", err)
	}
}
