package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portfolio/backend/internal/filter"
	"github.com/portfolio/backend/internal/model"
)

const messageColumns = `id::text, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(message, ''),
	COALESCE(ip_address, ''), COALESCE(user_agent, ''), read, starred, tags, created_at, updated_at`

// PgMessageRepository is the PostgreSQL implementation of MessageRepository.
// email, phone, message and ip_address columns hold ciphertext.
type PgMessageRepository struct {
	pool   *pgxpool.Pool
	sealer messageSealer
}

// NewPgMessageRepository creates a PgMessageRepository backed by the given pool.
func NewPgMessageRepository(pool *pgxpool.Pool, cipher FieldCipher) *PgMessageRepository {
	return &PgMessageRepository{pool: pool, sealer: messageSealer{cipher: cipher}}
}

// Ensure PgMessageRepository implements MessageRepository at compile time.
var _ MessageRepository = (*PgMessageRepository)(nil)

// Create inserts msg. ID and timestamps are assigned by the caller.
func (r *PgMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	sealed, err := r.sealer.seal(msg)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO messages (id, name, email, phone, message, ip_address, user_agent,
		                       read, starred, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $12)`,
		sealed.ID, sealed.Name, sealed.Email, sealed.Phone, sealed.Message, sealed.IPAddress,
		sealed.UserAgent, sealed.Read, sealed.Starred, sealed.Tags, sealed.CreatedAt, sealed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("messages: insert: %w", err)
	}
	return nil
}

// FindByID returns the message with the given id or ErrNotFound.
func (r *PgMessageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	return r.scanOne(row, "find")
}

// List returns a page of matching messages and the total match count.
//
// Without a search term the predicate, count and pagination run in SQL. With
// one, every candidate matching the plaintext criteria is decrypted and
// filtered in memory before the page is cut, because the searched columns are
// stored encrypted.
func (r *PgMessageRepository) List(ctx context.Context, c filter.Criteria, page model.Page) ([]*model.Message, int, error) {
	p := filter.Build(c)
	where, args := p.SQL(1)

	if p.NeedsDecryptedScan() {
		matched, err := r.scanDecrypted(ctx, p, where, args, 0)
		if err != nil {
			return nil, 0, err
		}
		return paginate(matched, page), len(matched), nil
	}

	total, err := r.countMatching(ctx, c, where, args)
	if err != nil {
		return nil, 0, err
	}
	if page.Offset() >= total {
		return []*model.Message{}, total, nil
	}

	limitArg := len(args) + 1
	args = append(args, page.Size, page.Offset())
	query := `SELECT ` + messageColumns + ` FROM messages` + whereClause(where) +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(limitArg) + ` OFFSET $` + strconv.Itoa(limitArg+1)

	msgs, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// ListAll returns up to limit matching messages, newest first. limit <= 0 means no bound.
func (r *PgMessageRepository) ListAll(ctx context.Context, c filter.Criteria, limit int) ([]*model.Message, error) {
	p := filter.Build(c)
	where, args := p.SQL(1)

	if p.NeedsDecryptedScan() {
		return r.scanDecrypted(ctx, p, where, args, limit)
	}

	query := `SELECT ` + messageColumns + ` FROM messages` + whereClause(where) + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	return r.query(ctx, query, args...)
}

// SetRead updates the read flag and returns the updated message.
func (r *PgMessageRepository) SetRead(ctx context.Context, id string, read bool) (*model.Message, error) {
	return r.update(ctx, id, "read = $2", read)
}

// SetStarred updates the starred flag and returns the updated message.
func (r *PgMessageRepository) SetStarred(ctx context.Context, id string, starred bool) (*model.Message, error) {
	return r.update(ctx, id, "starred = $2", starred)
}

// UpdateTags applies action to the tag set in a single statement.
func (r *PgMessageRepository) UpdateTags(ctx context.Context, id string, action model.TagAction, tags []string) (*model.Message, error) {
	tags = model.NormalizeTags(tags)
	switch action {
	case model.TagAdd:
		return r.update(ctx, id,
			`tags = ARRAY(SELECT DISTINCT t FROM unnest(tags || $2::text[]) AS t ORDER BY t)`, tags)
	case model.TagRemove:
		return r.update(ctx, id,
			`tags = ARRAY(SELECT t FROM unnest(tags) AS t WHERE NOT (t = ANY($2::text[])))`, tags)
	case model.TagSet:
		return r.update(ctx, id, `tags = $2::text[]`, tags)
	default:
		return nil, model.ErrInvalidTagAction
	}
}

// Delete removes the message permanently.
func (r *PgMessageRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("messages: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored messages.
func (r *PgMessageRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("messages: count: %w", err)
	}
	return n, nil
}

// countMatching counts the rows selected by where. An unfiltered listing
// uses Count directly.
func (r *PgMessageRepository) countMatching(ctx context.Context, c filter.Criteria, where string, args []any) (int, error) {
	if c.IsZero() {
		return r.Count(ctx)
	}
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`+whereClause(where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("messages: count: %w", err)
	}
	return n, nil
}

func (r *PgMessageRepository) update(ctx context.Context, id, set string, value any) (*model.Message, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE messages SET `+set+`, updated_at = NOW() WHERE id = $1 RETURNING `+messageColumns,
		id, value)
	return r.scanOne(row, "update")
}

func (r *PgMessageRepository) scanDecrypted(ctx context.Context, p filter.Predicate, where string, args []any, limit int) ([]*model.Message, error) {
	candidates, err := r.query(ctx,
		`SELECT `+messageColumns+` FROM messages`+whereClause(where)+` ORDER BY created_at DESC, id DESC`,
		args...)
	if err != nil {
		return nil, err
	}
	matched := candidates[:0]
	for _, m := range candidates {
		if !p.Match(m) {
			continue
		}
		matched = append(matched, m)
		if limit > 0 && len(matched) == limit {
			break
		}
	}
	return matched, nil
}

func (r *PgMessageRepository) query(ctx context.Context, query string, args ...any) ([]*model.Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("messages: query: %w", err)
	}
	defer rows.Close()

	var sealed []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("messages: scan: %w", err)
		}
		sealed = append(sealed, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: rows: %w", err)
	}
	return r.sealer.openAll(sealed)
}

func (r *PgMessageRepository) scanOne(row pgx.Row, op string) (*model.Message, error) {
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("messages: %s: %w", op, err)
	}
	return r.sealer.open(m)
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Message, &m.IPAddress, &m.UserAgent,
		&m.Read, &m.Starred, &m.Tags, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return &m, nil
}

func whereClause(where string) string {
	if where == "" {
		return ""
	}
	return " WHERE " + where
}

// validID reports whether id can be a messages primary key. Malformed ids
// cannot match any row, so callers treat them as not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func paginate(msgs []*model.Message, page model.Page) []*model.Message {
	start := page.Offset()
	if start < 0 || start >= len(msgs) {
		return []*model.Message{}
	}
	end := start + page.Size
	if page.Size <= 0 || end > len(msgs) {
		end = len(msgs)
	}
	return msgs[start:end]
}
