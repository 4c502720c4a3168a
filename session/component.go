package session

import (
	"context"

	"github.com/kbukum/medscribe/component"
	"github.com/kbukum/medscribe/logger"
)

// Component runs an Orchestrator under the component lifecycle. Start
// loads the saved list; Stop tears down an active session.
type Component struct {
	orch   *Orchestrator
	cancel context.CancelFunc
}

var _ component.Component = (*Component)(nil)

func NewComponent(o *Orchestrator) *Component {
	return &Component{orch: o}
}

func (c *Component) Orchestrator() *Orchestrator { return c.orch }

func (c *Component) Name() string { return "session" }

func (c *Component) Start(ctx context.Context) error {
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.orch.mu.Lock()
	c.orch.base = base
	c.orch.mu.Unlock()

	if _, err := c.orch.RefreshSaved(ctx); err != nil {
		c.orch.log.Warn("saved prescriptions unavailable at startup", logger.ErrorFields("refresh_saved", err))
	}
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.orch.Shutdown(ctx)
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Component) Health(_ context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: string(c.orch.Status()),
	}
}
