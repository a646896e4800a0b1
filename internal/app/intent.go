package app

import "github.com/adrenalink/adrenalink/internal/router"

// OpenAuth opens the auth prompt without a destination
func (c *Controller) OpenAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promptOpen = true
	c.intent = ""
}

// OpenAuthWithIntent opens the auth prompt and remembers where the user was
// headed, so a successful login lands there
func (c *Controller) OpenAuthWithIntent(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promptOpen = true
	c.intent = ""
	if path != "" {
		c.intent = router.Clean(path)
	}
}

// CloseAuthPrompt closes the prompt and forgets the intent, whether the
// user succeeded or cancelled
func (c *Controller) CloseAuthPrompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promptOpen = false
	c.intent = ""
}

// AuthPrompt reports whether the prompt is open and its pending target
func (c *Controller) AuthPrompt() (open bool, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.promptOpen, c.intent
}

// takeIntent consumes the intent and closes the prompt
func (c *Controller) takeIntent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.intent
	c.promptOpen = false
	c.intent = ""
	return target
}
