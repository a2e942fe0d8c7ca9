// internal/cbs/cbs.go
package cbs

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"loan-manager/internal/common/logger"
	"loan-manager/internal/models"
)

var ErrCustomerNotFound = errors.New("customer not found")

// KYCProvider looks up a customer's identity in the core banking system.
type KYCProvider interface {
	GetIdentity(ctx context.Context, customerNumber string) (*models.Identity, error)
}

// TransactionProvider returns a customer's aggregated transaction history.
// Unknown customers get an empty list, not an error.
type TransactionProvider interface {
	GetTransactions(ctx context.Context, customerNumber string) ([]models.Transaction, error)
}

//go:embed mock_transactions.json
var mockTransactionsJSON []byte

// DefaultCustomers are the customer numbers the mock core banking system knows.
var DefaultCustomers = []string{"234774784", "318411216", "340397370", "366585630", "397178638"}

// MockCBS serves a fixed data set in place of the core banking SOAP services.
type MockCBS struct {
	customers    map[string]models.Identity
	transactions []models.Transaction
	logger       logger.Logger
}

type MockOption func(*MockCBS)

// WithIdentity adds or replaces a customer, e.g. an inactive one.
func WithIdentity(identity models.Identity) MockOption {
	return func(m *MockCBS) { m.customers[identity.CustomerID] = identity }
}

func NewMockCBS(log logger.Logger, opts ...MockOption) (*MockCBS, error) {
	var txs []models.Transaction
	if err := json.Unmarshal(mockTransactionsJSON, &txs); err != nil {
		return nil, fmt.Errorf("parse mock transactions: %w", err)
	}

	m := &MockCBS{
		customers:    make(map[string]models.Identity, len(DefaultCustomers)),
		transactions: txs,
		logger:       logger.ForComponent(log, "cbs-mock"),
	}
	for _, id := range DefaultCustomers {
		m.customers[id] = models.Identity{
			CustomerID: id,
			FullName:   "Mock Customer Name",
			Status:     models.IdentityStatusActive,
			Address:    "Mock Address",
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *MockCBS) GetIdentity(_ context.Context, customerNumber string) (*models.Identity, error) {
	identity, ok := m.customers[strings.TrimSpace(customerNumber)]
	if !ok {
		m.logger.Warn("customer not in mock data", map[string]interface{}{
			logger.FieldCustomerNumber: customerNumber,
		})
		return nil, ErrCustomerNotFound
	}
	return &identity, nil
}

func (m *MockCBS) GetTransactions(_ context.Context, customerNumber string) ([]models.Transaction, error) {
	if _, ok := m.customers[strings.TrimSpace(customerNumber)]; !ok {
		return []models.Transaction{}, nil
	}
	out := make([]models.Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out, nil
}
