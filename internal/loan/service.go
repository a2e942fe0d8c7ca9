// internal/loan/service.go
package loan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"loan-manager/internal/cbs"
	apperrors "loan-manager/internal/common/errors"
	"loan-manager/internal/common/logger"
	"loan-manager/internal/common/metrics"
	"loan-manager/internal/common/tasks"
	"loan-manager/internal/models"
	"loan-manager/internal/store"

	"github.com/shopspring/decimal"
)

const dispatchFailure = "Unexpected error processing loan request."

// Dispatcher runs a scoring round off the caller's goroutine.
type Dispatcher interface {
	Go(name string, task tasks.Task) error
}

// ScoringRunner drives one scoring round to a terminal status.
type ScoringRunner interface {
	Run(ctx context.Context, customerNumber string)
}

// Service is the loan workflow: subscription, loan admission and status lookup.
type Service struct {
	kyc        cbs.KYCProvider
	store      store.ApplicationStore
	scorer     ScoringRunner
	dispatcher Dispatcher
	logger     logger.Logger
}

func NewService(kyc cbs.KYCProvider, st store.ApplicationStore, scorer ScoringRunner, dispatcher Dispatcher, log logger.Logger) *Service {
	return &Service{
		kyc:        kyc,
		store:      st,
		scorer:     scorer,
		dispatcher: dispatcher,
		logger:     logger.ForComponent(log, "loan-service"),
	}
}

// Subscribe verifies the customer's identity and marks them ELIGIBLE.
// Nothing is persisted when the KYC check fails.
func (s *Service) Subscribe(ctx context.Context, customerNumber string) (*models.LoanApplication, error) {
	customerNumber = strings.TrimSpace(customerNumber)
	if customerNumber == "" {
		return nil, apperrors.NewValidationError("Customer number is required.")
	}
	log := logger.ForCustomer(s.logger, customerNumber)
	log.Info("attempting subscription", nil)

	identity, err := s.kyc.GetIdentity(ctx, customerNumber)
	switch {
	case errors.Is(err, cbs.ErrCustomerNotFound) || (err == nil && identity == nil):
		metrics.SubscriptionsTotal.WithLabelValues("kyc_rejected").Inc()
		log.Warn("kyc failed, customer not found", nil)
		return nil, apperrors.NewKYCRejectedError("Customer not found")
	case err != nil:
		metrics.SubscriptionsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewInternalError(fmt.Errorf("kyc lookup: %w", err))
	case !strings.EqualFold(identity.Status, models.IdentityStatusActive):
		metrics.SubscriptionsTotal.WithLabelValues("kyc_rejected").Inc()
		log.Warn("kyc failed, customer inactive", map[string]interface{}{"kycStatus": identity.Status})
		return nil, apperrors.NewKYCRejectedError("Customer status not ACTIVE")
	}

	// A subscription must not overwrite a record owned by a scoring round.
	acquired, err := s.store.TryLock(ctx, customerNumber)
	if err != nil {
		metrics.SubscriptionsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewStoreUnavailableError("lock", err)
	}
	if !acquired {
		metrics.SubscriptionsTotal.WithLabelValues("conflict").Inc()
		current := s.currentStatus(ctx, customerNumber)
		return nil, apperrors.NewConcurrencyConflictError(
			"Cannot subscribe: an active loan or pending application exists. Status: "+current,
			models.StatusFailedConcurrent.String(), current)
	}
	defer s.release(ctx, customerNumber, log)

	app, err := s.store.Find(ctx, customerNumber)
	if errors.Is(err, store.ErrNotFound) {
		app = models.NewLoanApplication(customerNumber)
	} else if err != nil {
		metrics.SubscriptionsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewStoreUnavailableError("find", err)
	}

	app.Status = models.StatusEligible
	if err := s.store.Save(ctx, app); err != nil {
		metrics.SubscriptionsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewStoreUnavailableError("save", err)
	}

	metrics.SubscriptionsTotal.WithLabelValues("subscribed").Inc()
	log.Info("customer subscribed", map[string]interface{}{logger.FieldStatus: app.Status.String()})
	return app.Clone(), nil
}

// RequestLoan admits a loan request and starts scoring in the background.
// The returned record is in PENDING_SCORE; the caller never waits for scoring.
func (s *Service) RequestLoan(ctx context.Context, customerNumber string, amount decimal.Decimal) (*models.LoanApplication, error) {
	customerNumber = strings.TrimSpace(customerNumber)
	if customerNumber == "" {
		metrics.LoanRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.NewValidationError("Customer number is required.")
	}
	log := logger.ForCustomer(s.logger, customerNumber)
	log.Info("processing loan request", map[string]interface{}{"amount": amount.String()})

	acquired, err := s.store.TryLock(ctx, customerNumber)
	if err != nil {
		metrics.LoanRequestsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewStoreUnavailableError("lock", err)
	}
	if !acquired {
		metrics.LoanRequestsTotal.WithLabelValues("conflict").Inc()
		current := s.currentStatus(ctx, customerNumber)
		log.Warn("active process exists", map[string]interface{}{logger.FieldStatus: current})
		return nil, apperrors.NewConcurrencyConflictError(
			"Cannot process request: An active loan or pending application exists. Status: "+current,
			models.StatusFailedConcurrent.String(), current)
	}

	app, err := s.admit(ctx, customerNumber, amount)
	if err != nil {
		s.release(ctx, customerNumber, log)
		return nil, err
	}
	accepted := app.Clone()

	err = s.dispatcher.Go("scoring:"+customerNumber, func(taskCtx context.Context) {
		s.scorer.Run(taskCtx, customerNumber)
	})
	if err != nil {
		log.Error("failed to dispatch scoring", map[string]interface{}{"error": err.Error()})
		s.abandon(ctx, app, log)
		metrics.LoanRequestsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewInternalError(fmt.Errorf("dispatch scoring: %w", err))
	}

	metrics.LoanRequestsTotal.WithLabelValues("accepted").Inc()
	log.Info("loan request queued for scoring", map[string]interface{}{"applicationId": accepted.ID})
	return accepted, nil
}

// admit runs with the lock held. Any error leaves the lock for the caller to release.
func (s *Service) admit(ctx context.Context, customerNumber string, amount decimal.Decimal) (*models.LoanApplication, error) {
	if !amount.IsPositive() {
		metrics.LoanRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.NewValidationError("Invalid loan amount requested.")
	}

	app, err := s.store.Find(ctx, customerNumber)
	if errors.Is(err, store.ErrNotFound) {
		metrics.LoanRequestsTotal.WithLabelValues("not_subscribed").Inc()
		return nil, apperrors.NewNotSubscribedError(customerNumber)
	}
	if err != nil {
		metrics.LoanRequestsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewStoreUnavailableError("find", err)
	}

	if !app.Status.AcceptsLoanRequest() {
		metrics.LoanRequestsTotal.WithLabelValues("conflict").Inc()
		return nil, apperrors.NewConcurrencyConflictError(
			fmt.Sprintf("State conflict: Application status %s prevents new request.", app.Status),
			models.StatusFailedConcurrent.String(), app.Status.String())
	}

	app.ResetScoring()
	app.RequestedAmount = amount
	app.Status = models.StatusPendingScore
	if err := s.store.Save(ctx, app); err != nil {
		metrics.LoanRequestsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewStoreUnavailableError("save", err)
	}
	return app, nil
}

// GetStatus returns the customer's current record. It takes no lock.
func (s *Service) GetStatus(ctx context.Context, customerNumber string) (*models.LoanApplication, error) {
	customerNumber = strings.TrimSpace(customerNumber)
	if customerNumber == "" {
		return nil, apperrors.NewValidationError("Customer number is required.")
	}

	app, err := s.store.Find(ctx, customerNumber)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewResourceNotFoundError("No loan application found for customer: " + customerNumber)
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError("find", err)
	}
	return app, nil
}

// abandon resolves a PENDING_SCORE record whose scoring round never started.
func (s *Service) abandon(ctx context.Context, app *models.LoanApplication, log logger.Logger) {
	wctx := context.WithoutCancel(ctx)
	app.Status = models.StatusScoringFailed
	app.FailureMessage = dispatchFailure
	if err := s.store.Save(wctx, app); err != nil {
		log.Error("failed to persist abandoned request", map[string]interface{}{"error": err.Error()})
	}
	s.release(wctx, app.CustomerNumber, log)
}

func (s *Service) release(ctx context.Context, customerNumber string, log logger.Logger) {
	if err := s.store.Unlock(context.WithoutCancel(ctx), customerNumber); err != nil {
		log.Error("failed to release lock", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) currentStatus(ctx context.Context, customerNumber string) string {
	app, err := s.store.Find(ctx, customerNumber)
	if err != nil {
		return "UNKNOWN"
	}
	return app.Status.String()
}
