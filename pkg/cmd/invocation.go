// Package cmd is a transport-agnostic command core: a command has a name,
// a description, and Run(ctx, invocation). Registration and dispatch live in
// adapters (the Discord layer wraps this for slash commands).
package cmd

import "context"

// Invocation is the input a runner hands to a command: positional arguments
// plus an opaque payload. Adapters put their own context into Data.
type Invocation struct {
	Args []string
	Data interface{}
}

// Command is the universal contract. Permissions, options and
// transport-specific registration belong to adapters.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
