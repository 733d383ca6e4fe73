package notification

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/util"
)

// SMSProvider sends a text message to an E.164 phone number.
type SMSProvider interface {
	Send(ctx context.Context, phoneNumber, body string) error
}

type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSProvider struct {
	client SNSPublisher
}

func NewSNSProvider(client SNSPublisher) *SNSProvider {
	return &SNSProvider{client: client}
}

func (p *SNSProvider) Send(ctx context.Context, phoneNumber, body string) error {
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phoneNumber),
		Message:     aws.String(body),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		util.Error("Failed to send SMS via AWS SNS",
			zap.String("phone", phone.Mask(phoneNumber)),
			zap.String("provider", "sns"),
			zap.Error(err))
		return fmt.Errorf("sns publish: %w", err)
	}

	util.Info("SMS sent successfully via AWS SNS",
		zap.String("phone", phone.Mask(phoneNumber)),
		zap.String("message_id", aws.ToString(out.MessageId)),
		zap.String("provider", "sns"))
	return nil
}

// LogProvider writes messages to the log instead of sending them. The body
// carries the code, so it is only logged when revealBody is set.
type LogProvider struct {
	revealBody bool
}

func NewLogProvider(revealBody bool) *LogProvider {
	return &LogProvider{revealBody: revealBody}
}

func (p *LogProvider) Send(_ context.Context, phoneNumber, body string) error {
	fields := []zap.Field{
		zap.String("phone", phone.Mask(phoneNumber)),
		zap.Int("message_length", len(body)),
		zap.String("provider", "log"),
	}
	if p.revealBody {
		fields = append(fields, zap.String("message", body))
	}
	util.Info("SMS would be sent", fields...)
	return nil
}
