// internal/scoring/pipeline.go
package scoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"loan-manager/internal/common/logger"
	"loan-manager/internal/common/metrics"
	"loan-manager/internal/models"
	"loan-manager/internal/store"
)

const (
	initiateFailurePrefix = "Failed to initiate scoring: "
	unexpectedFailure     = "Unexpected system error during scoring."
	finalWriteTimeout     = 5 * time.Second
	finalSaveAttempts     = 2
)

// Clock abstracts time for the poll loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DecisionPublisher is told about every scoring round that reached a terminal status.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, app *models.LoanApplication) error
}

// Pipeline drives one scoring round: initiate, poll with bounded retry,
// evaluate, persist. Every path that ends the round releases the customer's lock.
type Pipeline struct {
	config    *Config
	gateway   Gateway
	store     store.ApplicationStore
	clock     Clock
	publisher DecisionPublisher
	logger    logger.Logger
}

type PipelineOption func(*Pipeline)

func WithClock(c Clock) PipelineOption {
	return func(p *Pipeline) { p.clock = c }
}

func WithPublisher(pub DecisionPublisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

func NewPipeline(cfg *Config, gw Gateway, st store.ApplicationStore, log logger.Logger, opts ...PipelineOption) *Pipeline {
	own := *cfg
	if own.MaxAttempts < 1 {
		own.MaxAttempts = 1
	}
	p := &Pipeline{
		config:  &own,
		gateway: gw,
		store:   st,
		clock:   realClock{},
		logger:  logger.ForComponent(log, "scoring-pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes a scoring round for the customer. It is meant to run on a
// background task and never returns an error: every failure is persisted as
// SCORING_FAILED.
func (p *Pipeline) Run(ctx context.Context, customerNumber string) {
	log := logger.ForCustomer(p.logger, customerNumber)
	start := p.clock.Now()

	metrics.ScoringRoundsActive.Inc()
	defer metrics.ScoringRoundsActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			log.Error("scoring round panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			p.failUnexpected(ctx, customerNumber, start)
		}
	}()

	if p.config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Deadline)
		defer cancel()
	}

	app, err := p.store.Find(ctx, customerNumber)
	if err != nil {
		// nothing to resolve, but the lock must not outlive the round
		log.Error("application missing at scoring start", map[string]interface{}{"error": err.Error()})
		p.unlock(ctx, customerNumber, log)
		return
	}

	token, err := p.gateway.Initiate(ctx, customerNumber)
	if err != nil {
		log.Error("failed to initiate scoring", map[string]interface{}{"error": err.Error()})
		p.finish(ctx, app, models.StatusScoringFailed, initiateFailurePrefix+describeInitiateError(err), start)
		return
	}

	app.ScoringToken = token
	app.Status = models.StatusScoringInProgress
	app.RetryCount = 0
	if err := p.store.Save(ctx, app); err != nil {
		log.Error("failed to persist scoring token", map[string]interface{}{"error": err.Error()})
		p.finish(ctx, app, models.StatusScoringFailed, unexpectedFailure, start)
		return
	}

	p.poll(ctx, customerNumber, token, start, log)
}

func (p *Pipeline) poll(ctx context.Context, customerNumber, token string, start time.Time, log logger.Logger) {
	var (
		lastErr  string
		attempts int
		app      *models.LoanApplication
	)

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		current, err := p.store.Find(ctx, customerNumber)
		if err != nil {
			log.Error("failed to reload application", map[string]interface{}{"error": err.Error()})
			p.failUnexpected(ctx, customerNumber, start)
			return
		}
		if !current.Status.IsScoring() {
			log.Warn("scoring aborted, status changed", map[string]interface{}{logger.FieldStatus: current.Status.String()})
			return
		}
		app = current

		app.RetryCount++
		attempts = attempt
		if err := p.store.Save(ctx, app); err != nil {
			log.Error("failed to persist attempt", map[string]interface{}{"error": err.Error()})
			p.finish(ctx, app, models.StatusScoringFailed, unexpectedFailure, start)
			return
		}

		log.Info("querying score", map[string]interface{}{
			logger.FieldAttempt: attempt,
			"maxAttempts":       p.config.MaxAttempts,
		})

		res, err := p.gateway.Poll(ctx, token)
		switch {
		case err == nil && res.Ready:
			metrics.ScoringAttemptsTotal.WithLabelValues("ready").Inc()
			p.evaluate(ctx, customerNumber, res.Result, start, log)
			return

		case err == nil:
			metrics.ScoringAttemptsTotal.WithLabelValues("not_ready").Inc()
			lastErr = "score not ready"

		default:
			var gwErr *GatewayError
			if !errors.As(err, &gwErr) {
				metrics.ScoringAttemptsTotal.WithLabelValues("unexpected").Inc()
				log.Error("unclassified poll failure", map[string]interface{}{"error": err.Error()})
				p.finish(ctx, app, models.StatusScoringFailed, unexpectedFailure, start)
				return
			}
			metrics.ScoringAttemptsTotal.WithLabelValues(string(gwErr.Kind)).Inc()

			if gwErr.Kind == KindClient {
				log.Warn("score query rejected", map[string]interface{}{"statusCode": gwErr.StatusCode})
				p.finish(ctx, app, models.StatusScoringFailed,
					fmt.Sprintf("Scoring failed: Client Error %d. Check token or request.", gwErr.StatusCode), start)
				return
			}
			if !gwErr.Retryable() {
				log.Error("non-retryable poll failure", map[string]interface{}{"error": gwErr.Error()})
				p.finish(ctx, app, models.StatusScoringFailed, "Scoring failed: "+gwErr.Error(), start)
				return
			}
			lastErr = gwErr.Error()
		}

		if attempt == p.config.MaxAttempts {
			break
		}

		delay := p.config.delayFor(attempt)
		log.Debug("score not available, retrying", map[string]interface{}{
			logger.FieldAttempt: attempt,
			"delay":             delay.String(),
			"reason":            lastErr,
		})
		if err := p.clock.Sleep(ctx, delay); err != nil {
			lastErr = fmt.Sprintf("%s (stopped waiting: %v)", lastErr, err)
			break
		}
	}

	if app == nil {
		return
	}
	p.finish(ctx, app, models.StatusScoringFailed,
		fmt.Sprintf("Failed to retrieve score after %d attempts: %s", attempts, lastErr), start)
}

func (p *Pipeline) evaluate(ctx context.Context, customerNumber string, result models.ScoreResult, start time.Time, log logger.Logger) {
	wctx, cancel := finalContext(ctx)
	defer cancel()

	app, err := p.store.Find(wctx, customerNumber)
	if err != nil {
		log.Error("application missing at evaluation", map[string]interface{}{"error": err.Error()})
		p.unlock(wctx, customerNumber, log)
		return
	}
	if app.Status != models.StatusScoringInProgress {
		log.Warn("score discarded, status changed", map[string]interface{}{logger.FieldStatus: app.Status.String()})
		return
	}

	decision := Apply(app, result)
	if !p.persistFinal(wctx, app, log) {
		return
	}
	if decision.Status != models.StatusActive {
		p.unlock(wctx, customerNumber, log)
	}

	log.Info("scoring decided", map[string]interface{}{
		logger.FieldStatus: decision.Status.String(),
		"score":            result.Score,
	})
	p.record(wctx, app, start)
}

// finish persists a terminal status and releases the lock. It uses a
// context detached from cancellation so a shutdown cannot strand the lock.
func (p *Pipeline) finish(ctx context.Context, app *models.LoanApplication, status models.LoanStatus, message string, start time.Time) {
	wctx, cancel := finalContext(ctx)
	defer cancel()
	log := logger.ForCustomer(p.logger, app.CustomerNumber)

	app.Status = status
	app.FailureMessage = message
	if !p.persistFinal(wctx, app, log) {
		return
	}
	p.unlock(wctx, app.CustomerNumber, log)

	log.Warn("scoring failed", map[string]interface{}{"failureMessage": message})
	p.record(wctx, app, start)
}

func (p *Pipeline) failUnexpected(ctx context.Context, customerNumber string, start time.Time) {
	wctx, cancel := finalContext(ctx)
	defer cancel()

	app, err := p.store.Find(wctx, customerNumber)
	if err != nil || !app.Status.IsScoring() {
		p.unlock(wctx, customerNumber, logger.ForCustomer(p.logger, customerNumber))
		return
	}
	p.finish(wctx, app, models.StatusScoringFailed, unexpectedFailure, start)
}

// persistFinal writes a terminal status, retrying once. When both writes fail
// the lock stays set: the stored status is still a scoring one and the marker
// must keep agreeing with it.
func (p *Pipeline) persistFinal(ctx context.Context, app *models.LoanApplication, log logger.Logger) bool {
	var err error
	for attempt := 1; attempt <= finalSaveAttempts; attempt++ {
		if err = p.store.Save(ctx, app); err == nil {
			return true
		}
		log.Warn("failed to persist final status", map[string]interface{}{
			logger.FieldStatus:  app.Status.String(),
			logger.FieldAttempt: attempt,
			"error":             err.Error(),
		})
	}
	log.Error("final status not persisted, keeping lock", map[string]interface{}{
		logger.FieldStatus: app.Status.String(),
		"error":            err.Error(),
	})
	return false
}

func (p *Pipeline) unlock(ctx context.Context, customerNumber string, log logger.Logger) {
	if err := p.store.Unlock(ctx, customerNumber); err != nil {
		log.Error("failed to release lock", map[string]interface{}{"error": err.Error()})
	}
}

func (p *Pipeline) record(ctx context.Context, app *models.LoanApplication, start time.Time) {
	status := app.Status.String()
	metrics.ScoringOutcomesTotal.WithLabelValues(status).Inc()
	metrics.ScoringRoundDuration.WithLabelValues(status).Observe(p.clock.Now().Sub(start).Seconds())

	if p.publisher == nil || !app.Status.IsTerminal() {
		return
	}
	if err := p.publisher.PublishDecision(ctx, app.Clone()); err != nil {
		p.logger.Warn("decision notification failed", map[string]interface{}{
			logger.FieldCustomerNumber: app.CustomerNumber,
			"error":                    err.Error(),
		})
	}
}

func finalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
}

func describeInitiateError(err error) string {
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return "Unexpected error during scoring initiation."
	}
	switch gwErr.Kind {
	case KindNetwork:
		return "Network error."
	case KindEmpty:
		return "No token received."
	case KindClient, KindServer:
		return fmt.Sprintf("%d %s", gwErr.StatusCode, http.StatusText(gwErr.StatusCode))
	default:
		return gwErr.Error()
	}
}
