package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/portfolio/backend/internal/filter"
	"github.com/portfolio/backend/internal/model"
)

// MemoryMessageRepository keeps sealed messages in a map. It backs tests and
// STORAGE=memory development runs and encrypts exactly like the pg store.
type MemoryMessageRepository struct {
	mu     sync.RWMutex
	sealer messageSealer
	rows   map[string]*model.Message
	now    func() time.Time
}

// NewMemoryMessageRepository creates an empty in-memory store.
func NewMemoryMessageRepository(cipher FieldCipher) *MemoryMessageRepository {
	return &MemoryMessageRepository{
		sealer: messageSealer{cipher: cipher},
		rows:   make(map[string]*model.Message),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ MessageRepository = (*MemoryMessageRepository)(nil)

// Ping always succeeds.
func (r *MemoryMessageRepository) Ping(ctx context.Context) error { return nil }

func (r *MemoryMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	sealed, err := r.sealer.seal(msg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[msg.ID]; exists {
		return ErrDuplicate
	}
	r.rows[msg.ID] = sealed
	return nil
}

func (r *MemoryMessageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.sealer.open(row)
}

func (r *MemoryMessageRepository) List(ctx context.Context, c filter.Criteria, page model.Page) ([]*model.Message, int, error) {
	matched, err := r.matching(c, 0)
	if err != nil {
		return nil, 0, err
	}
	return paginate(matched, page), len(matched), nil
}

func (r *MemoryMessageRepository) ListAll(ctx context.Context, c filter.Criteria, limit int) ([]*model.Message, error) {
	return r.matching(c, limit)
}

func (r *MemoryMessageRepository) SetRead(ctx context.Context, id string, read bool) (*model.Message, error) {
	return r.mutate(id, func(m *model.Message) { m.Read = read })
}

func (r *MemoryMessageRepository) SetStarred(ctx context.Context, id string, starred bool) (*model.Message, error) {
	return r.mutate(id, func(m *model.Message) { m.Starred = starred })
}

func (r *MemoryMessageRepository) UpdateTags(ctx context.Context, id string, action model.TagAction, tags []string) (*model.Message, error) {
	if !action.Valid() {
		return nil, model.ErrInvalidTagAction
	}
	return r.mutate(id, func(m *model.Message) { m.Tags = model.ApplyTags(m.Tags, action, tags) })
}

func (r *MemoryMessageRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *MemoryMessageRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows), nil
}

// mutate applies fn to the stored row under the write lock. fn only touches
// plaintext columns, so the row is not resealed.
func (r *MemoryMessageRepository) mutate(id string, fn func(*model.Message)) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(row)
	row.UpdatedAt = r.now()
	return r.sealer.open(row)
}

func (r *MemoryMessageRepository) matching(c filter.Criteria, limit int) ([]*model.Message, error) {
	r.mu.RLock()
	sealed := make([]*model.Message, 0, len(r.rows))
	for _, row := range r.rows {
		sealed = append(sealed, cloneMessage(row))
	}
	r.mu.RUnlock()

	opened, err := r.sealer.openAll(sealed)
	if err != nil {
		return nil, err
	}
	sort.Slice(opened, func(i, j int) bool {
		if opened[i].CreatedAt.Equal(opened[j].CreatedAt) {
			return opened[i].ID > opened[j].ID
		}
		return opened[i].CreatedAt.After(opened[j].CreatedAt)
	})

	p := filter.Build(c)
	out := make([]*model.Message, 0, len(opened))
	for _, m := range opened {
		if !p.Match(m) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// StoredFields returns the raw persisted values of the encrypted columns of
// id, in the order email, phone, message, ip address.
func (r *MemoryMessageRepository) StoredFields(id string) ([4]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return [4]string{}, false
	}
	return [4]string{row.Email, row.Phone, row.Message, row.IPAddress}, true
}
