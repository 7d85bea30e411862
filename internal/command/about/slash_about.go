package about

import (
	"fmt"
	"strings"
	"time"

	"groovebot/internal/command"
	"groovebot/internal/version"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
)

type AboutCommand struct{}

func (c *AboutCommand) Name() string { return "about" }
func (c *AboutCommand) Description() string { return "Show what this bot is and how it was built" }
func (c *AboutCommand) Group() string { return "core" }
func (c *AboutCommand) Category() string { return "ℹ️ Information" }

func (c *AboutCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *AboutCommand) Run(ctx interface{}) error {
	slash, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	embedMsg := buildAboutEmbed()
	return slash.Session.InteractionRespond(slash.Event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embedMsg},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

func buildAboutEmbed() *discordgo.MessageEmbed {
	buildDate := "unknown"
	if version.BuildDate != "" {
		if t, err := time.Parse(time.RFC3339, version.BuildDate); err == nil {
			buildDate = t.Format("2006-01-02")
		}
	}
	goVer := strings.TrimPrefix(version.GoVersion, "go")

	return embed.NewEmbed().
		SetColor(command.EmbedColor).
		SetDescription(fmt.Sprintf("ℹ️ **About %s**\n\n%s", version.AppName, version.AppDescription)).
		AddField("Version", version.Version).
		AddField("Release", fmt.Sprintf("%s (Go %s)", buildDate, goVer)).
		MessageEmbed
}

func init() {
	command.RegisterCommand(&AboutCommand{}, command.WithCommandLogger())
}
