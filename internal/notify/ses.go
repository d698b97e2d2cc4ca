package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/portfolio/backend/internal/model"
)

// SESConfig configures the SES v2 sender. Empty keys fall back to the
// default AWS credential chain.
type SESConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	From      string
	To        string
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender mails the owner through Amazon SES v2.
type SESSender struct {
	client sesAPI
	from   string
	to     string
}

// NewSES builds an SES client from cfg.
func NewSES(ctx context.Context, cfg SESConfig) (*SESSender, error) {
	if cfg.From == "" || cfg.To == "" {
		return nil, errors.New("notify: SES from and to addresses are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newSESSender(sesv2.NewFromConfig(awsCfg), cfg.From, cfg.To), nil
}

func newSESSender(client sesAPI, from, to string) *SESSender {
	return &SESSender{client: client, from: from, to: to}
}

// NotifyNewMessage sends a plain-text summary with Reply-To set to the submitter.
func (s *SESSender) NotifyNewMessage(ctx context.Context, msg *model.Message) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{s.to}},
		ReplyToAddresses: []string{msg.Email},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject(msg)), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(textBody(msg)), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("kind"), Value: aws.String("contact_message")},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	if out.MessageId != nil {
		slog.DebugContext(ctx, "notification sent", "message_id", msg.ID, "ses_id", *out.MessageId)
	}
	return nil
}
