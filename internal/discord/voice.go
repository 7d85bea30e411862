package discord

import (
	"fmt"

	"groovebot/internal/bot"
	"groovebot/internal/music/session"

	"github.com/bwmarrin/discordgo"
)

// voiceConn adapts a discordgo voice connection to the session layer.
type voiceConn struct {
	vc *discordgo.VoiceConnection
}

func (c *voiceConn) ChannelID() string {
	return c.vc.ChannelID
}

func (c *voiceConn) Speaking(speaking bool) error {
	return c.vc.Speaking(speaking)
}

func (c *voiceConn) Send(opus []byte) {
	c.vc.OpusSend <- opus
}

func (c *voiceConn) Disconnect() error {
	return c.vc.Disconnect()
}

// voiceJoiner returns a session.Joiner backed by the gateway session.
// Joined muted=false, deafened=true: the bot only ever sends audio.
func voiceJoiner(dg *discordgo.Session) session.Joiner {
	return func(guildID, channelID string) (session.Connection, error) {
		vc, err := dg.ChannelVoiceJoin(guildID, channelID, false, true)
		if err != nil {
			return nil, fmt.Errorf("join voice channel: %w", err)
		}
		return &voiceConn{vc: vc}, nil
	}
}

// FindUserVoiceState finds the voice channel a user is currently in.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return &bot.VoiceState{
				ChannelID: vs.ChannelID,
				UserID:    vs.UserID,
			}, nil
		}
	}
	return nil, fmt.Errorf("user not in any voice channel")
}
