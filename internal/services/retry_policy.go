package services

import (
	"errors"
	"time"

	"github.com/maxaizer/vacancy-dispatcher/internal/clients/telegram"
	"github.com/maxaizer/vacancy-dispatcher/internal/queue"
)

type Decision int

const (
	// DecisionRetry republishes the task after Delay.
	DecisionRetry Decision = iota
	// DecisionGiveUp acknowledges the task without delivering it.
	DecisionGiveUp
	// DecisionFatal hands the task back to the broker.
	DecisionFatal
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionGiveUp:
		return "give_up"
	default:
		return "fatal"
	}
}

type Verdict struct {
	Decision Decision
	Delay    time.Duration
}

type RetryPolicy struct {
	MaxRetries int
}

func (p RetryPolicy) Decide(task queue.Task, err error) Verdict {
	var rateLimit *telegram.RateLimitError
	switch {
	case errors.As(err, &rateLimit):
		if task.RetryCount < p.MaxRetries {
			return Verdict{Decision: DecisionRetry, Delay: rateLimit.RetryAfter}
		}
		return Verdict{Decision: DecisionGiveUp}
	case errors.Is(err, telegram.ErrRecipientUnavailable):
		return Verdict{Decision: DecisionGiveUp}
	default:
		return Verdict{Decision: DecisionFatal}
	}
}
