// Package notify tells the site owner about new contact messages.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/portfolio/backend/internal/model"
)

// Sender delivers a notification for a newly stored message. Delivery is
// best effort; callers treat errors as non-fatal.
type Sender interface {
	NotifyNewMessage(ctx context.Context, msg *model.Message) error
}

// LogSender writes notifications to the structured log. It is the fallback
// when no mail transport is configured.
type LogSender struct{}

func (LogSender) NotifyNewMessage(ctx context.Context, msg *model.Message) error {
	slog.InfoContext(ctx, "new contact message", "message_id", msg.ID, "name", msg.Name)
	return nil
}

// Nop discards notifications.
type Nop struct{}

func (Nop) NotifyNewMessage(context.Context, *model.Message) error { return nil }

func subject(msg *model.Message) string {
	return fmt.Sprintf("New contact message from %s", msg.Name)
}

func textBody(msg *model.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", msg.Name)
	fmt.Fprintf(&b, "Email: %s\n", msg.Email)
	if msg.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", msg.Phone)
	}
	fmt.Fprintf(&b, "Received: %s\n\n", msg.CreatedAt.UTC().Format("Jan 2, 2006 3:04 PM MST"))
	b.WriteString(msg.Message)
	b.WriteString("\n")
	return b.String()
}
