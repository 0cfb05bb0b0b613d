package sagas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is one unit of a saga. Execute receives the previous step's
// output. Compensate, when set, undoes a completed Execute and receives
// that step's output.
type Step struct {
	Name       string
	Execute    func(ctx context.Context, data interface{}) (interface{}, error)
	Compensate func(ctx context.Context, data interface{}) error
	MaxRetries int
	RetryDelay time.Duration
}

// State represents the current state of a saga execution
type State string

const (
	StatePending      State = "PENDING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED"
	StateCompensating State = "COMPENSATING"
	StateCompensated  State = "COMPENSATED"
)

// StepError reports the step a saga stopped at. CompensationErr holds any
// failures while undoing earlier steps.
type StepError struct {
	Saga            string
	Step            string
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s failed at step %s and compensation failed: %v", e.Saga, e.Step, e.Err)
	}
	return fmt.Sprintf("saga %s failed at step %s: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type compensation struct {
	step string
	run  func(ctx context.Context) error
}

// Saga runs steps in order and, when one fails, compensates the completed
// steps in reverse. A Saga is single-use.
type Saga struct {
	id            string
	name          string
	steps         []Step
	compensations []compensation
	state         State
	currentStep   int
	logger        *zap.Logger
}

// New creates a pending saga.
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:     uuid.NewString(),
		name:   name,
		state:  StatePending,
		logger: logger,
	}
}

// AddStep appends step.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs the saga and returns the last step's output.
func (s *Saga) Execute(ctx context.Context, initialData interface{}) (interface{}, error) {
	if s.state != StatePending {
		return nil, fmt.Errorf("saga %s already executed", s.name)
	}
	s.state = StateRunning
	s.logger.Debug("Starting saga execution",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("total_steps", len(s.steps)),
	)

	data := initialData
	for i, step := range s.steps {
		s.currentStep = i

		result, err := s.executeStepWithRetry(ctx, step, data)
		if err != nil {
			s.state = StateFailed
			s.logger.Warn("Saga step failed",
				zap.String("saga_id", s.id),
				zap.String("step_name", step.Name),
				zap.Error(err),
			)

			stepErr := &StepError{Saga: s.name, Step: step.Name, Err: err}
			stepErr.CompensationErr = s.compensate(ctx)
			if stepErr.CompensationErr == nil {
				s.state = StateCompensated
			} else {
				s.state = StateFailed
			}
			return nil, stepErr
		}

		data = result
		if step.Compensate != nil {
			compensate, stepData := step.Compensate, data
			s.compensations = append(s.compensations, compensation{
				step: step.Name,
				run:  func(ctx context.Context) error { return compensate(ctx, stepData) },
			})
		}
	}

	s.state = StateCompleted
	s.logger.Debug("Saga completed",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
	)
	return data, nil
}

func (s *Saga) executeStepWithRetry(ctx context.Context, step Step, data interface{}) (interface{}, error) {
	attempts := step.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	delay := step.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(lastErr, ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := step.Execute(ctx, data)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	if attempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("step %s failed after %d attempts: %w", step.Name, attempts, lastErr)
}

// compensate undoes completed steps, newest first. Every compensation runs
// even if an earlier one fails. It uses a context detached from
// cancellation so a cancelled request still rolls back.
func (s *Saga) compensate(ctx context.Context) error {
	s.state = StateCompensating
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(s.compensations) - 1; i >= 0; i-- {
		c := s.compensations[i]
		if err := c.run(ctx); err != nil {
			s.logger.Error("Compensation failed",
				zap.String("saga_id", s.id),
				zap.String("step_name", c.step),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("compensate %s: %w", c.step, err))
		}
	}
	return errors.Join(errs...)
}

// State returns the current state of the saga.
func (s *Saga) State() State {
	return s.state
}

// ID returns the saga ID.
func (s *Saga) ID() string {
	return s.id
}

// CurrentStep returns the index of the step last started.
func (s *Saga) CurrentStep() int {
	return s.currentStep
}
