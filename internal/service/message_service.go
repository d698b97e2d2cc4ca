package service

import (
	"context"

	"github.com/portfolio/backend/internal/filter"
	"github.com/portfolio/backend/internal/model"
)

// CreateResult is returned by MessageService.Create.
type CreateResult struct {
	Message *model.Message
	// NotificationDelayed is set when the message was stored but the owner
	// notification could not be sent.
	NotificationDelayed bool
}

// MessageService defines the business logic for contact messages.
type MessageService interface {
	// Create validates and stores a new submission, then notifies the owner.
	Create(ctx context.Context, in model.NewMessage) (*CreateResult, error)

	// List returns one page of messages matching c, newest first.
	List(ctx context.Context, c filter.Criteria, page, pageSize int) (*model.MessagePage, error)

	// GetByID returns a single message without side effects.
	GetByID(ctx context.Context, id string) (*model.Message, error)

	// MarkViewed returns the message and flags it read if it was unread.
	MarkViewed(ctx context.Context, id string) (*model.Message, error)

	SetRead(ctx context.Context, id string, read bool) (*model.Message, error)
	SetStarred(ctx context.Context, id string, starred bool) (*model.Message, error)
	UpdateTags(ctx context.Context, id string, action model.TagAction, tags []string) (*model.Message, error)
	Delete(ctx context.Context, id string) error

	// Export returns every message matching c, newest first, up to limit.
	// limit <= 0 selects the configured default.
	Export(ctx context.Context, c filter.Criteria, limit int) ([]*model.Message, error)
}
