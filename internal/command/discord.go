package command

import (
	"context"

	"groovebot/internal/storage"
	"groovebot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// Discord-specific contexts (what the runtime passes when executing).

type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
}

type ComponentInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
}

type AutocompleteInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
}

// Providers — how a command is surfaced to Discord beyond its slash handler.

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

type ComponentInteractionHandler interface {
	Component(*ComponentInteractionContext) error
}

type AutocompleteHandler interface {
	Autocomplete(*AutocompleteInteractionContext) error
}

// ComponentPrefixProvider lets a command claim component custom IDs whose
// namespace differs from the command name (e.g. the play command owning the
// "music:" transport buttons).
type ComponentPrefixProvider interface {
	ComponentPrefix() string
}

// DiscordMeta is exposed by the Discord adapter so middleware can read
// Group/Category without depending on the concrete command type.
type DiscordMeta interface {
	Group() string
	Category() string
}

// DiscordCommand is what individual Discord commands implement (Run takes
// interface{} for Discord contexts).
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	Run(ctx interface{}) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in the
// universal registry. It also implements SlashProvider, AutocompleteHandler,
// ComponentInteractionHandler, ComponentPrefixProvider and DiscordMeta by
// delegating to the inner command.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string { return a.Cmd.Category() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	return a.Cmd.Run(inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func (a *DiscordAdapter) Component(ctx *ComponentInteractionContext) error {
	if ch, ok := a.Cmd.(ComponentInteractionHandler); ok {
		return ch.Component(ctx)
	}
	return nil
}

func (a *DiscordAdapter) Autocomplete(ctx *AutocompleteInteractionContext) error {
	if ah, ok := a.Cmd.(AutocompleteHandler); ok {
		return ah.Autocomplete(ctx)
	}
	return nil
}

func (a *DiscordAdapter) ComponentPrefix() string {
	if pp, ok := a.Cmd.(ComponentPrefixProvider); ok {
		return pp.ComponentPrefix()
	}
	return ""
}

// RegisterCommand registers a Discord command with the universal registry and
// applies middlewares.
func RegisterCommand(discordCmd DiscordCommand, mws ...cmd.Middleware) {
	c := cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...)
	cmd.DefaultRegistry.Register(c)
}
