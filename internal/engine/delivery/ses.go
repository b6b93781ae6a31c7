package delivery

import (
	"context"
	"fmt"

	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends summaries through AWS SES v2.
type SES struct {
	from   string
	client sesAPI
}

// NewSES loads AWS configuration for AWS_REGION. Static keys from the config
// file take precedence over the default credential chain.
func NewSES(ctx context.Context, cfg *engine.Config) (*SES, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return &SES{from: cfg.SESFrom, client: sesv2.NewFromConfig(awsCfg)}, nil
}

func buildSESInput(from string, m engine.Message) (*sesv2.SendEmailInput, error) {
	if m.To == "" {
		return nil, ErrNoRecipient
	}
	htmlBody, err := ToHTML(m.Subject, m.Body)
	if err != nil {
		return nil, err
	}
	utf8 := aws.String("UTF-8")
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{m.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(m.Subject), Charset: utf8},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: utf8},
					Text: &types.Content{Data: aws.String(m.Body), Charset: utf8},
				},
			},
		},
	}, nil
}

func (s *SES) Deliver(ctx context.Context, m engine.Message) error {
	in, err := buildSESInput(s.from, m)
	if err != nil {
		return err
	}
	if _, err := s.client.SendEmail(ctx, in); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
