package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/portfolio/backend/internal/filter"
	"github.com/portfolio/backend/internal/model"
	"github.com/portfolio/backend/internal/notify"
	"github.com/portfolio/backend/internal/repository"
)

const (
	maxNameLength    = 100
	maxEmailLength   = 254
	maxPhoneLength   = 30
	maxMessageLength = 5000

	defaultPageSize      = 10
	maxPageSize          = 100
	defaultExportLimit   = 10000
	defaultNotifyTimeout = 5 * time.Second
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// MessageServiceImpl is the default MessageService.
type MessageServiceImpl struct {
	repo          repository.MessageRepository
	sender        notify.Sender
	now           func() time.Time
	newID         func() string
	notifyTimeout time.Duration
	exportLimit   int
}

// MessageOption customises a MessageServiceImpl.
type MessageOption func(*MessageServiceImpl)

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) MessageOption {
	return func(s *MessageServiceImpl) { s.now = now }
}

// WithNotifyTimeout bounds each notification attempt.
func WithNotifyTimeout(d time.Duration) MessageOption {
	return func(s *MessageServiceImpl) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithExportLimit sets the default cap on exported rows.
func WithExportLimit(n int) MessageOption {
	return func(s *MessageServiceImpl) {
		if n > 0 {
			s.exportLimit = n
		}
	}
}

// NewMessageService creates a MessageServiceImpl. A nil sender disables notifications.
func NewMessageService(repo repository.MessageRepository, sender notify.Sender, opts ...MessageOption) *MessageServiceImpl {
	if sender == nil {
		sender = notify.Nop{}
	}
	s := &MessageServiceImpl{
		repo:          repo,
		sender:        sender,
		now:           time.Now,
		newID:         uuid.NewString,
		notifyTimeout: defaultNotifyTimeout,
		exportLimit:   defaultExportLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ MessageService = (*MessageServiceImpl)(nil)

func (s *MessageServiceImpl) Create(ctx context.Context, in model.NewMessage) (*CreateResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Message = strings.TrimSpace(in.Message)
	if err := validateNewMessage(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	msg := &model.Message{
		ID:        s.newID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Message:   in.Message,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, &PersistenceError{Op: "create", Err: err}
	}

	res := &CreateResult{Message: msg}
	// The notification outlives a cancelled request; the record is already stored.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.sender.NotifyNewMessage(nctx, msg); err != nil {
		slog.WarnContext(ctx, "notification failed", "message_id", msg.ID, "error", err)
		res.NotificationDelayed = true
	}
	return res, nil
}

func validateNewMessage(in model.NewMessage) error {
	switch {
	case in.Name == "":
		return &ValidationError{Field: "name", Code: "name_required"}
	case utf8.RuneCountInString(in.Name) > maxNameLength:
		return &ValidationError{Field: "name", Code: "name_too_long"}
	case in.Email == "":
		return &ValidationError{Field: "email", Code: "email_required"}
	case len(in.Email) > maxEmailLength || !emailPattern.MatchString(in.Email):
		return &ValidationError{Field: "email", Code: "email_invalid"}
	case in.Message == "":
		return &ValidationError{Field: "message", Code: "message_required"}
	case utf8.RuneCountInString(in.Message) > maxMessageLength:
		return &ValidationError{Field: "message", Code: "message_too_long"}
	case utf8.RuneCountInString(in.Phone) > maxPhoneLength:
		return &ValidationError{Field: "phone", Code: "phone_too_long"}
	}
	return nil
}

func (s *MessageServiceImpl) List(ctx context.Context, c filter.Criteria, page, pageSize int) (*model.MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	msgs, total, err := s.repo.List(ctx, c, model.Page{Number: page, Size: pageSize})
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return &model.MessagePage{
		Data:        msgs,
		Total:       total,
		CurrentPage: page,
		TotalPages:  (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *MessageServiceImpl) GetByID(ctx context.Context, id string) (*model.Message, error) {
	msg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get", err)
	}
	return msg, nil
}

func (s *MessageServiceImpl) MarkViewed(ctx context.Context, id string) (*model.Message, error) {
	msg, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Read {
		return msg, nil
	}
	return s.SetRead(ctx, id, true)
}

func (s *MessageServiceImpl) SetRead(ctx context.Context, id string, read bool) (*model.Message, error) {
	msg, err := s.repo.SetRead(ctx, id, read)
	if err != nil {
		return nil, storeErr("set read", err)
	}
	return msg, nil
}

func (s *MessageServiceImpl) SetStarred(ctx context.Context, id string, starred bool) (*model.Message, error) {
	msg, err := s.repo.SetStarred(ctx, id, starred)
	if err != nil {
		return nil, storeErr("set starred", err)
	}
	return msg, nil
}

func (s *MessageServiceImpl) UpdateTags(ctx context.Context, id string, action model.TagAction, tags []string) (*model.Message, error) {
	if !action.Valid() {
		return nil, &ValidationError{Field: "action", Code: "invalid_action"}
	}
	msg, err := s.repo.UpdateTags(ctx, id, action, model.NormalizeTags(tags))
	if err != nil {
		return nil, storeErr("update tags", err)
	}
	return msg, nil
}

func (s *MessageServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

func (s *MessageServiceImpl) Export(ctx context.Context, c filter.Criteria, limit int) ([]*model.Message, error) {
	if limit <= 0 || limit > s.exportLimit {
		limit = s.exportLimit
	}
	msgs, err := s.repo.ListAll(ctx, c, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "export", Err: err}
	}
	if len(msgs) == 0 {
		return nil, ErrNothingToExport
	}
	return msgs, nil
}
