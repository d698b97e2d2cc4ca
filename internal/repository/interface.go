package repository

import (
	"context"

	"github.com/portfolio/backend/internal/filter"
	"github.com/portfolio/backend/internal/model"
)

// DB は DB 接続の生存確認を行うインターフェース
type DB interface {
	Ping(ctx context.Context) error
}

// FieldCipher seals and opens individual field values.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// MessageRepository persists contact messages. Implementations encrypt the
// sensitive fields on the way in and decrypt them on the way out; callers only
// ever see plaintext.
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	// List returns one page ordered by created_at descending, plus the total
	// number of matching records.
	List(ctx context.Context, c filter.Criteria, page model.Page) ([]*model.Message, int, error)
	// ListAll returns up to limit matching records ordered by created_at descending.
	ListAll(ctx context.Context, c filter.Criteria, limit int) ([]*model.Message, error)
	SetRead(ctx context.Context, id string, read bool) (*model.Message, error)
	SetStarred(ctx context.Context, id string, starred bool) (*model.Message, error)
	UpdateTags(ctx context.Context, id string, action model.TagAction, tags []string) (*model.Message, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// UserRepository はユーザー永続化のインターフェース
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Count(ctx context.Context) (int, error)
}
