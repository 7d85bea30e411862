package music

import (
	"strings"

	"groovebot/internal/music/track"

	"github.com/bwmarrin/discordgo"
)

// Component custom IDs are "music:<kind>:<guildID>" so one handler can route
// every transport control.
const componentNamespace = "music"

const (
	controlPause = "pause"
	controlSkip  = "skip"
	controlStop  = "stop"
	controlLoop  = "loop"
	controlPick  = "pick"
)

func controlID(kind, guildID string) string {
	return componentNamespace + ":" + kind + ":" + guildID
}

// parseControlID splits a transport custom ID into its kind and guild.
func parseControlID(customID string) (kind, guildID string, ok bool) {
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) != 3 || parts[0] != componentNamespace || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// buildControls returns the transport button row for the now-playing panel.
// The pause button doubles as resume; the loop button changes style while
// loop is on so the state is visible at a glance.
func buildControls(guildID string, paused, looping, disabled bool) []discordgo.MessageComponent {
	pauseLabel := "Pause"
	pauseEmoji := "⏸️"
	pauseStyle := discordgo.SecondaryButton
	if paused {
		pauseLabel = "Resume"
		pauseEmoji = "▶️"
		pauseStyle = discordgo.PrimaryButton
	}

	loopStyle := discordgo.SecondaryButton
	if looping {
		loopStyle = discordgo.PrimaryButton
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    pauseLabel,
					Emoji:    &discordgo.ComponentEmoji{Name: pauseEmoji},
					Style:    pauseStyle,
					CustomID: controlID(controlPause, guildID),
					Disabled: disabled,
				},
				discordgo.Button{
					Label:    "Skip",
					Emoji:    &discordgo.ComponentEmoji{Name: "⏭️"},
					Style:    discordgo.PrimaryButton,
					CustomID: controlID(controlSkip, guildID),
					Disabled: disabled,
				},
				discordgo.Button{
					Label:    "Loop",
					Emoji:    &discordgo.ComponentEmoji{Name: "🔁"},
					Style:    loopStyle,
					CustomID: controlID(controlLoop, guildID),
					Disabled: disabled,
				},
				discordgo.Button{
					Label:    "Stop",
					Emoji:    &discordgo.ComponentEmoji{Name: "⏹️"},
					Style:    discordgo.DangerButton,
					CustomID: controlID(controlStop, guildID),
					Disabled: disabled,
				},
			},
		},
	}
}

// buildPicker returns the search result select menu for a free-text /play.
func buildPicker(guildID string, candidates []track.Candidate, disabled bool) []discordgo.MessageComponent {
	options := make([]discordgo.SelectMenuOption, 0, len(candidates))
	for _, c := range candidates {
		options = append(options, discordgo.SelectMenuOption{
			Label: c.Label(),
			Value: c.URL,
		})
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    controlID(controlPick, guildID),
					Placeholder: "Pick a track",
					Options:     options,
					Disabled:    disabled,
				},
			},
		},
	}
}
