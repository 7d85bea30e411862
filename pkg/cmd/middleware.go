package cmd

// Middleware wraps a command (logging, guards). The wrapped value is still a
// Command, so middleware composes freely.
type Middleware func(Command) Command

// Apply wraps c with each middleware in turn; the last in the list becomes
// the outermost wrapper and runs first.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}
