package offscreen

import "github.com/cryguy/offscreen/internal/core"

// client hands the engine the session's handlers.
type client struct {
	surface *RenderSurface
	nav     *NavigationStateTracker
}

func (c *client) RenderHandler() core.RenderHandler     { return c.surface }
func (c *client) LoadHandler() core.LoadHandler         { return c.nav }
func (c *client) LifeSpanHandler() core.LifeSpanHandler { return c.nav }
