package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// Discord API error codes for interaction acknowledgement races: the token
// was already used, or the interaction expired before we answered.
const (
	errCodeAlreadyAcknowledged = 40060
	errCodeUnknownInteraction  = 10062
)

// isAckRace reports whether err is a lost race on interaction acknowledgement.
// These happen under normal operation (double click, slow handler) and are
// not worth surfacing.
func isAckRace(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return false
	}
	code := restErr.Message.Code
	return code == errCodeAlreadyAcknowledged || code == errCodeUnknownInteraction
}

// RespondEmbedEphemeral sends an ephemeral embed response to an interaction.
func RespondEmbedEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:  discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

// MessageEmbed sends an embed to a channel.
func MessageEmbed(s *discordgo.Session, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := s.ChannelMessageSendEmbed(channelID, embed)
	return err
}
