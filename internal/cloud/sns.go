package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSAlerter notifies operators when the end-of-day archive fails.
type SNSAlerter struct {
	svc      snsAPI
	topicArn string
}

func NewSNSAlerter(ctx context.Context, region, topicArn string) (*SNSAlerter, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &SNSAlerter{svc: sns.NewFromConfig(cfg), topicArn: topicArn}, nil
}

func (a *SNSAlerter) SendAlert(ctx context.Context, subject, message string) error {
	out, err := a.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	log.Info().Str("message_id", aws.ToString(out.MessageId)).Msg("alert sent")
	return nil
}

// ArchiveFailed reports that day could not be archived and the working set
// was kept.
func (a *SNSAlerter) ArchiveFailed(ctx context.Context, day domain.Day, cause error) error {
	subject := fmt.Sprintf("Meter archive failed for %s", day)
	message := fmt.Sprintf(
		"Daily archive failed\n\n"+
			"Day: %s\n"+
			"Error: %v\n"+
			"Time: %s\n\n"+
			"Today's readings were kept in memory and will be archived on the next attempt.",
		day,
		cause,
		time.Now().Format(time.RFC3339),
	)
	return a.SendAlert(ctx, subject, message)
}
