package command

import (
	"context"
	"log"

	"groovebot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// WithGuildOnly rejects slash invocations that arrive outside a guild
// (DMs have no voice channels, so music commands are meaningless there).
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if slash, ok := inv.Data.(*SlashInteractionContext); ok && slash.Event.GuildID == "" {
				return slash.Session.InteractionRespond(slash.Event.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: "This command only works in a server.",
						Flags:   discordgo.MessageFlagsEphemeral,
					},
				})
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithCommandLogger appends each slash invocation to the guild's command
// history after the command runs.
func WithCommandLogger() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			err := c.Run(ctx, inv)

			if slash, ok := inv.Data.(*SlashInteractionContext); ok && slash.Storage != nil && slash.Event.Member != nil {
				user := slash.Event.Member.User
				logErr := logInvocation(slash, user.ID, user.Username, c.Name())
				if logErr != nil {
					log.Println("[WARN] Failed to log command:", logErr)
				}
			}
			return err
		})
	}
}

func logInvocation(slash *SlashInteractionContext, userID, username, name string) error {
	s := slash.Session
	e := slash.Event

	channelName := ""
	if channel, err := s.State.Channel(e.ChannelID); err == nil {
		channelName = channel.Name
	}
	guildName := ""
	if guild, err := s.State.Guild(e.GuildID); err == nil {
		guildName = guild.Name
	}

	return slash.Storage.SetCommand(e.GuildID, e.ChannelID, channelName, guildName, userID, username, name)
}
