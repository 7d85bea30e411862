// Package bot defines the interface the Discord runtime exposes to commands.
// Commands depend on this package instead of the discord package so the
// dependency graph stays acyclic.
package bot

import (
	"groovebot/internal/music/player"
	"groovebot/internal/music/queue"
	"groovebot/internal/music/resolver"
)

// BotVoice is what music commands need from the bot runtime.
type BotVoice interface {
	Controller(guildID string) *player.Controller
	Queue() *queue.Store
	Resolver() *resolver.Resolver
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
}

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}
