// internal/common/aws/sns_test.go
package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"loan-manager/internal/common/logger"
	"loan-manager/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSNSService struct {
	mock.Mock
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func approvedApplication() *models.LoanApplication {
	app := models.NewLoanApplication("234774784")
	app.Status = models.StatusApproved
	app.RequestedAmount = decimal.NewFromInt(5000)
	app.LimitAmount = decimal.NewNullDecimal(decimal.NewFromInt(8000))
	return app
}

func TestDecisionPublisher_Publish(t *testing.T) {
	client := new(MockSNSService)
	p := NewDecisionPublisher(client, "arn:aws:sns:us-east-1:123456789012:loan-decisions", logger.NewTestLogger(t))
	fixed := time.Date(2025, 4, 24, 16, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	app := approvedApplication()

	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		if awssdk.ToString(in.TopicArn) != "arn:aws:sns:us-east-1:123456789012:loan-decisions" {
			return false
		}
		if awssdk.ToString(in.MessageAttributes["status"].StringValue) != "APPROVED" {
			return false
		}
		var event DecisionEvent
		if err := json.Unmarshal([]byte(awssdk.ToString(in.Message)), &event); err != nil {
			return false
		}
		return event.CustomerNumber == "234774784" &&
			event.ApplicationID == app.ID &&
			event.RequestedAmount == "5000" &&
			event.LimitAmount != nil && *event.LimitAmount == "8000" &&
			event.EventID != "" &&
			event.At.Equal(fixed)
	})).Return(&sns.PublishOutput{MessageId: awssdk.String("msg-1")}, nil).Once()

	require.NoError(t, p.PublishDecision(context.Background(), app))
	client.AssertExpectations(t)
}

func TestDecisionPublisher_PublishFailure(t *testing.T) {
	client := new(MockSNSService)
	p := NewDecisionPublisher(client, "arn:topic", logger.NewNoOpLogger())

	client.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()

	err := p.PublishDecision(context.Background(), approvedApplication())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish decision: throttled")
}

func TestDecisionPublisher_FailedRoundOmitsLimit(t *testing.T) {
	client := new(MockSNSService)
	p := NewDecisionPublisher(client, "arn:topic", logger.NewNoOpLogger())

	app := models.NewLoanApplication("c1")
	app.Status = models.StatusScoringFailed
	app.FailureMessage = "Failed to initiate scoring: Network error."

	var sent string
	client.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = awssdk.ToString(args.Get(1).(*sns.PublishInput).Message)
	}).Return(&sns.PublishOutput{}, nil).Once()

	require.NoError(t, p.PublishDecision(context.Background(), app))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(sent), &raw))
	assert.NotContains(t, raw, "limitAmount")
	assert.Equal(t, "Failed to initiate scoring: Network error.", raw["failureMessage"])
}

func TestDecisionPublisher_NilApplication(t *testing.T) {
	p := NewDecisionPublisher(new(MockSNSService), "arn:topic", logger.NewNoOpLogger())
	assert.Error(t, p.PublishDecision(context.Background(), nil))
}
