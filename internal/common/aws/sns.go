// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"loan-manager/internal/common/logger"
	"loan-manager/internal/common/metrics"
	"loan-manager/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

// SNSService is the subset of the SNS client used here, for mocking.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return sns.NewFromConfig(cfg), nil
}

// DecisionEvent is the message body published when a scoring round ends.
type DecisionEvent struct {
	EventID         string    `json:"eventId"`
	ApplicationID   string    `json:"applicationId"`
	CustomerNumber  string    `json:"customerNumber"`
	Status          string    `json:"status"`
	FailureMessage  string    `json:"failureMessage,omitempty"`
	RequestedAmount string    `json:"requestedAmount"`
	LimitAmount     *string   `json:"limitAmount,omitempty"`
	At              time.Time `json:"at"`
}

// DecisionPublisher sends loan decisions to an SNS topic.
type DecisionPublisher struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
	now      func() time.Time
}

func NewDecisionPublisher(client SNSService, topicARN string, log logger.Logger) *DecisionPublisher {
	return &DecisionPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger.ForComponent(log, "sns-publisher"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *DecisionPublisher) PublishDecision(ctx context.Context, app *models.LoanApplication) error {
	if app == nil {
		return errors.New("nil application")
	}

	event := DecisionEvent{
		EventID:         uuid.New().String(),
		ApplicationID:   app.ID,
		CustomerNumber:  app.CustomerNumber,
		Status:          app.Status.String(),
		FailureMessage:  app.FailureMessage,
		RequestedAmount: app.RequestedAmount.String(),
		At:              p.now(),
	}
	if app.LimitAmount.Valid {
		limit := app.LimitAmount.Decimal.String()
		event.LimitAmount = &limit
	}

	body, err := json.Marshal(event)
	if err != nil {
		metrics.DecisionNotificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal decision event: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(p.topicARN),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(event.Status),
			},
		},
	})
	if err != nil {
		metrics.DecisionNotificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish decision: %w", err)
	}

	metrics.DecisionNotificationsTotal.WithLabelValues("sent").Inc()
	p.logger.Debug("decision published", map[string]interface{}{
		logger.FieldCustomerNumber: app.CustomerNumber,
		logger.FieldStatus:         event.Status,
		"messageId":                awssdk.ToString(out.MessageId),
	})
	return nil
}
