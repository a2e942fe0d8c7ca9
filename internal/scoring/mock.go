// internal/scoring/mock.go
package scoring

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"loan-manager/internal/models"

	"github.com/shopspring/decimal"
)

const (
	MockTokenPrefix        = "MOCK-TOKEN-"
	mockExcluded           = "Excluded"
	mockExclusionReason    = "Mock Exclusion Reason"
	mockExclusionThreshold = 0.2
)

// MockGateway stands in for the scoring service when scoring.mock_enabled is
// set. Scores fall in 650-749, limits in 5000-15000, and one in five
// customers is excluded.
type MockGateway struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockGateway seeds from the clock when rnd is nil.
func NewMockGateway(rnd *rand.Rand) *MockGateway {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockGateway{rnd: rnd}
}

func (m *MockGateway) Initiate(_ context.Context, customerNumber string) (string, error) {
	return MockTokenPrefix + customerNumber, nil
}

func (m *MockGateway) Poll(_ context.Context, token string) (PollResult, error) {
	customerNumber := strings.TrimPrefix(token, MockTokenPrefix)

	m.mu.Lock()
	score := 650 + m.rnd.Intn(100)
	limit := decimal.NewFromFloat(5000 + m.rnd.Float64()*10000).Round(2)
	excluded := m.rnd.Float64() < mockExclusionThreshold
	m.mu.Unlock()

	result := models.ScoreResult{
		CustomerNumber: customerNumber,
		Score:          score,
		LimitAmount:    decimal.NewNullDecimal(limit),
		Exclusion:      models.NoExclusion,
	}
	if excluded {
		result.Exclusion = mockExcluded
		result.ExclusionReason = mockExclusionReason
	}
	return Ready(result), nil
}
