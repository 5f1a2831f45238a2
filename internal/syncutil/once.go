package syncutil

// CloseOnce runs a release function exactly once and remembers its result.
// The zero value is ready to use.
type CloseOnce struct {
	err  error
	mu   Mutex
	done bool
}

// Do runs fn on the first call and returns its error. Later calls return
// the same error without running fn again.
func (c *CloseOnce) Do(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.err
	}
	c.done = true
	c.err = fn()
	return c.err
}

// Done reports whether Do has run.
func (c *CloseOnce) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
