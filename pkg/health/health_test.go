package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticChecker struct {
	name string
	err  error
}

func (c staticChecker) Name() string                  { return c.name }
func (c staticChecker) Check(ctx context.Context) error { return c.err }

func TestCheckerRegistry_Check(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{name: "no checkers", want: StatusHealthy},
		{name: "all healthy", checkers: []Checker{staticChecker{name: "a"}, staticChecker{name: "b"}}, want: StatusHealthy},
		{
			name:     "degraded",
			checkers: []Checker{staticChecker{name: "a"}, staticChecker{name: "b", err: &DegradedError{Reason: "slow"}}},
			want:     StatusDegraded,
		},
		{
			name: "unhealthy wins over degraded",
			checkers: []Checker{
				staticChecker{name: "a", err: errors.New("down")},
				staticChecker{name: "b", err: &DegradedError{Reason: "slow"}},
			},
			want: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			for _, c := range tt.checkers {
				r.Register(c)
			}

			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, len(tt.checkers))
		})
	}
}

func TestCircuitBreakerChecker(t *testing.T) {
	state := "closed"
	c := NewCircuitBreakerChecker("stream-kafka", func() string { return state })
	assert.NoError(t, c.Check(context.Background()))

	state = "open"
	err := c.Check(context.Background())
	var degraded *DegradedError
	assert.ErrorAs(t, err, &degraded)
}

func TestKafkaChecker_NoBrokers(t *testing.T) {
	assert.Error(t, NewKafkaChecker("kafka", nil).Check(context.Background()))
}
