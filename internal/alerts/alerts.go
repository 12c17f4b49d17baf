package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"fortune/internal/store"
)

type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes failed record writes to an operator topic.
type SNSNotifier struct {
	client   Publisher
	topicArn string
	now      func() time.Time
}

func NewSNSNotifier(client Publisher, topicArn string) *SNSNotifier {
	return &SNSNotifier{client: client, topicArn: strings.TrimSpace(topicArn), now: time.Now}
}

type persistenceAlert struct {
	Kind      string `json:"kind"`
	RecordID  string `json:"recordId"`
	UserID    string `json:"userId,omitempty"`
	Category  string `json:"category"`
	Error     string `json:"error"`
	CreatedAt string `json:"createdAt"`
	AlertedAt string `json:"alertedAt"`
}

func (n *SNSNotifier) NotifyPersistenceFailure(ctx context.Context, rec store.Record, cause error) error {
	if n.topicArn == "" {
		return nil
	}
	body, err := json.Marshal(persistenceAlert{
		Kind:      "fortune_persist_failed",
		RecordID:  rec.ID,
		UserID:    rec.UserID,
		Category:  string(rec.Category),
		Error:     cause.Error(),
		CreatedAt: rec.CreatedAt,
		AlertedAt: n.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	subject := fmt.Sprintf("fortune record %s not saved", rec.ID)
	if len(subject) > 100 {
		subject = subject[:100]
	}
	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sns Publish: %w", err)
	}
	return nil
}
