package agent

import (
	"context"
	"fmt"
	"time"
)

// PlanSource produces an agent plan. Implementations must honour ctx.
type PlanSource interface {
	FetchPlan(ctx context.Context) (*Response, error)
}

// DefaultMockDelay simulates the latency of the real agent call.
const DefaultMockDelay = time.Second

// MockSource returns the fixed sample response after Delay.
type MockSource struct {
	Delay time.Duration
}

func NewMockSource(delay time.Duration) *MockSource {
	if delay < 0 {
		delay = 0
	}
	return &MockSource{Delay: delay}
}

// FetchPlan waits out the delay and returns a copy of the sample response.
// If ctx ends first the timer is stopped and ctx.Err() is returned.
func (m *MockSource) FetchPlan(ctx context.Context) (*Response, error) {
	timer := time.NewTimer(m.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return SampleResponse(), nil
	}
}

// JSONGetter is the slice of backend.Client that ProxySource needs.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, result any) error
}

// ProxySource fetches the plan through the backend proxy.
type ProxySource struct {
	Client JSONGetter
	Path   string
}

func (p *ProxySource) FetchPlan(ctx context.Context) (*Response, error) {
	var resp Response
	if err := p.Client.GetJSON(ctx, p.Path, &resp); err != nil {
		return nil, fmt.Errorf("agent proxy: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("agent proxy: status %q", resp.Status)
	}
	if resp.Plan == nil {
		return nil, fmt.Errorf("agent proxy: response has no plan")
	}
	return &resp, nil
}
