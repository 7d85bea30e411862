package music

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"groovebot/internal/bot"
	"groovebot/internal/command"
	"groovebot/internal/music/player"
	"groovebot/internal/music/resolver"
	"groovebot/internal/music/track"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
)

const (
	// maxSearchChoices caps autocomplete results.
	maxSearchChoices = 10
	// maxPickerChoices caps the select menu; five is plenty to scan at a glance.
	maxPickerChoices = 5
	// pickWindow is how long a search picker stays active.
	pickWindow = 15 * time.Second
	// metadataTimeout bounds the lookup for the added-to-queue embed.
	metadataTimeout = 10 * time.Second
)

// pendingPick is an open search picker waiting for the requester's choice.
type pendingPick struct {
	requesterID string
	interaction *discordgo.Interaction
	messageID   string
	expire      *time.Timer
}

var picks = struct {
	mu      sync.Mutex
	byGuild map[string]*pendingPick
}{byGuild: make(map[string]*pendingPick)}

// PlayCommand implements /play: resolve a link or search query, queue the
// track and drive playback through the transport buttons it posts.
type PlayCommand struct {
	Bot bot.BotVoice
}

func (c *PlayCommand) Name() string { return "play" }
func (c *PlayCommand) Description() string { return "Play a YouTube track or search for one" }
func (c *PlayCommand) Group() string { return "music" }
func (c *PlayCommand) Category() string { return "🎵 Music" }

func (c *PlayCommand) ComponentPrefix() string { return componentNamespace }

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "query",
				Description:  "YouTube link or search query",
				Required:     true,
				Autocomplete: true,
			},
		},
	}
}

func (c *PlayCommand) Run(ctx interface{}) error {
	slash, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	s := slash.Session
	e := slash.Event
	query := ""
	for _, opt := range e.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}

	if err := s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	resolved, err := c.Bot.Resolver().Resolve(query)
	if err != nil {
		return followupEphemeralEmbed(s, e, "🎵 Nothing to play — give me a link or something to search for.")
	}

	switch resolved.Kind {
	case resolver.KindDirectTrack:
		voiceState, err := c.Bot.FindUserVoiceState(e.GuildID, e.Member.User.ID)
		if err != nil {
			return followupEphemeralEmbed(s, e, "🎵 Join a voice channel first.")
		}
		return c.enqueueAndPlay(slash, resolved.URL, voiceState.ChannelID)

	case resolver.KindSearchQuery:
		return c.offerSearchResults(slash, query)
	}
	return nil
}

// enqueueAndPlay appends the track and either starts playback or reports the
// queue position when something is already playing.
func (c *PlayCommand) enqueueAndPlay(slash *command.SlashInteractionContext, url, voiceChannelID string) error {
	s := slash.Session
	e := slash.Event
	guildID := e.GuildID

	q := c.Bot.Queue()
	ctrl := c.Bot.Controller(guildID)
	q.Enqueue(guildID, url)

	if ctrl.Busy() {
		meta := &track.Track{URL: url, Title: url}
		ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
		defer cancel()
		if m, err := c.Bot.Resolver().Metadata(ctx, url); err == nil {
			meta = m
		}
		_, err := s.FollowupMessageCreate(e.Interaction, false, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{addedToQueueEmbed(meta, q.Len(guildID))},
		})
		return err
	}

	panels.Bind(s, slash.Storage, q, ctrl, guildID, e.ChannelID, e.Member.User.ID)

	if err := ctrl.PlayNext(voiceChannelID); err != nil {
		if errors.Is(err, player.ErrBusy) {
			return followupEmbed(s, e, "➕ Added to queue.")
		}
		return followupEphemeralEmbed(s, e, fmt.Sprintf("🎵 Can't play that: %v", err))
	}

	title := url
	if t := ctrl.Current(); t != nil {
		title = t.Title
	}
	return followupEmbed(s, e, fmt.Sprintf("▶️ Playing **%s**", title))
}

// offerSearchResults posts a short-lived select menu with the top matches.
func (c *PlayCommand) offerSearchResults(slash *command.SlashInteractionContext, query string) error {
	s := slash.Session
	e := slash.Event
	guildID := e.GuildID

	candidates := c.Bot.Resolver().Search(query, maxPickerChoices)
	if len(candidates) == 0 {
		return followupEphemeralEmbed(s, e, fmt.Sprintf("🔍 No results for **%s**.", query))
	}

	msg, err := s.FollowupMessageCreate(e.Interaction, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			embed.NewEmbed().
				SetColor(command.EmbedColor).
				SetDescription(fmt.Sprintf("🔍 Results for **%s** — pick one within %d seconds.", query, int(pickWindow.Seconds()))).
				MessageEmbed,
		},
		Components: buildPicker(guildID, candidates, false),
	})
	if err != nil {
		return fmt.Errorf("failed to post search results: %w", err)
	}

	picks.mu.Lock()
	if prev := picks.byGuild[guildID]; prev != nil && prev.expire != nil {
		prev.expire.Stop()
	}
	pick := &pendingPick{
		requesterID: e.Member.User.ID,
		interaction: e.Interaction,
		messageID:   msg.ID,
	}
	pick.expire = time.AfterFunc(pickWindow, func() { expirePick(s, guildID, pick) })
	picks.byGuild[guildID] = pick
	picks.mu.Unlock()

	return nil
}

// expirePick disables a picker nobody used.
func expirePick(s *discordgo.Session, guildID string, pick *pendingPick) {
	picks.mu.Lock()
	if picks.byGuild[guildID] != pick {
		picks.mu.Unlock()
		return
	}
	delete(picks.byGuild, guildID)
	picks.mu.Unlock()

	components := []discordgo.MessageComponent{}
	_, err := s.FollowupMessageEdit(pick.interaction, pick.messageID, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{
			embed.NewEmbed().SetColor(command.EmbedColor).SetDescription("🔍 Search expired.").MessageEmbed,
		},
		Components: &components,
	})
	if err != nil {
		log.Println("[WARN] Failed to expire search picker:", err)
	}
}

// Autocomplete suggests tracks while the user types the query option.
func (c *PlayCommand) Autocomplete(ctx *command.AutocompleteInteractionContext) error {
	s := ctx.Session
	e := ctx.Event

	term := ""
	for _, opt := range e.ApplicationCommandData().Options {
		if opt.Name == "query" && opt.Focused {
			term = opt.StringValue()
		}
	}

	candidates := c.Bot.Resolver().Search(term, maxSearchChoices)
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(candidates))
	for _, cand := range candidates {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  cand.Label(),
			Value: cand.URL,
		})
	}

	return s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}

// Component routes "music:<kind>:<guildID>" interactions: the transport
// buttons on the now-playing panel and the search picker.
func (c *PlayCommand) Component(ctx *command.ComponentInteractionContext) error {
	s := ctx.Session
	e := ctx.Event

	kind, guildID, ok := parseControlID(e.MessageComponentData().CustomID)
	if !ok {
		return nil
	}

	if kind == controlPick {
		return c.handlePick(ctx, guildID)
	}

	// Only the requester who opened the panel steers playback; everyone
	// else gets a silent acknowledgement.
	if p := panels.get(guildID); p != nil && interactionUserID(e) != p.requesterID {
		return ackComponent(s, e)
	}

	ctrl := c.Bot.Controller(guildID)
	var err error
	switch kind {
	case controlPause:
		if ctrl.State() == player.StatePaused {
			err = ctrl.Resume()
		} else {
			err = ctrl.Pause()
		}
	case controlSkip:
		err = ctrl.Skip()
	case controlLoop:
		c.Bot.Queue().ToggleLoop(guildID)
	case controlStop:
		ctrl.Stop()
	default:
		return nil
	}

	if errors.Is(err, player.ErrNoTrackPlaying) {
		return respondEphemeralEmbed(s, e, "🎵 Nothing is playing.")
	}
	if err != nil {
		return err
	}

	if ackErr := ackComponent(s, e); ackErr != nil {
		return ackErr
	}
	if kind == controlPause || kind == controlLoop {
		panels.refresh(guildID)
	}
	return nil
}

// handlePick consumes a search picker selection.
func (c *PlayCommand) handlePick(ctx *command.ComponentInteractionContext, guildID string) error {
	s := ctx.Session
	e := ctx.Event
	userID := interactionUserID(e)

	picks.mu.Lock()
	pick := picks.byGuild[guildID]
	if pick == nil {
		picks.mu.Unlock()
		return respondEphemeralEmbed(s, e, "🔍 That search has expired — run /play again.")
	}
	if userID != pick.requesterID {
		picks.mu.Unlock()
		return ackComponent(s, e)
	}
	delete(picks.byGuild, guildID)
	if pick.expire != nil {
		pick.expire.Stop()
	}
	picks.mu.Unlock()

	voiceState, err := c.Bot.FindUserVoiceState(guildID, userID)
	if err != nil {
		return respondEphemeralEmbed(s, e, "🎵 Join a voice channel first.")
	}

	values := e.MessageComponentData().Values
	if len(values) == 0 {
		return ackComponent(s, e)
	}
	url := values[0]

	// Replace the picker with a confirmation before the (possibly slow) load.
	components := []discordgo.MessageComponent{}
	if err := s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				embed.NewEmbed().SetColor(command.EmbedColor).SetDescription("➕ Track queued.").MessageEmbed,
			},
			Components: components,
		},
	}); err != nil {
		return err
	}

	q := c.Bot.Queue()
	ctrl := c.Bot.Controller(guildID)
	q.Enqueue(guildID, url)

	if ctrl.Busy() {
		return nil
	}

	panels.Bind(s, ctx.Storage, q, ctrl, guildID, e.ChannelID, userID)
	if err := ctrl.PlayNext(voiceState.ChannelID); err != nil && !errors.Is(err, player.ErrBusy) {
		log.Printf("[WARN] Failed to start picked track on guild %s: %v", guildID, err)
	}
	return nil
}

// addedToQueueEmbed shows the queued track with its metadata and position.
func addedToQueueEmbed(t *track.Track, pending int) *discordgo.MessageEmbed {
	e := embed.NewEmbed().
		SetColor(command.EmbedColor).
		SetTitle("➕ Added to queue").
		SetDescription(fmt.Sprintf("[%s](%s)", t.Title, t.URL))
	if t.Author != "" {
		e = e.AddField("Channel", t.Author)
	}
	if t.Duration > 0 {
		e = e.AddField("Duration", track.FormatDuration(t.Duration))
	}
	e = e.AddField("Position", fmt.Sprintf("%d", pending))
	if t.Thumbnail != "" {
		e = e.SetThumbnail(t.Thumbnail)
	}
	return e.MessageEmbed
}

func interactionUserID(e *discordgo.InteractionCreate) string {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User.ID
	}
	if e.User != nil {
		return e.User.ID
	}
	return ""
}

// ackComponent acknowledges a component interaction without visible output.
func ackComponent(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	return s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func respondEphemeralEmbed(s *discordgo.Session, e *discordgo.InteractionCreate, text string) error {
	return s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				embed.NewEmbed().SetColor(command.EmbedColor).SetDescription(text).MessageEmbed,
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func followupEmbed(s *discordgo.Session, e *discordgo.InteractionCreate, text string) error {
	_, err := s.FollowupMessageCreate(e.Interaction, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			embed.NewEmbed().SetColor(command.EmbedColor).SetDescription(text).MessageEmbed,
		},
	})
	return err
}

func followupEphemeralEmbed(s *discordgo.Session, e *discordgo.InteractionCreate, text string) error {
	_, err := s.FollowupMessageCreate(e.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			embed.NewEmbed().SetColor(command.EmbedColor).SetDescription(text).MessageEmbed,
		},
		Flags: discordgo.MessageFlagsEphemeral,
	})
	return err
}
