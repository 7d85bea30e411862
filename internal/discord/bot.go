package discord

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"groovebot/internal/command"
	"groovebot/internal/command/music"
	"groovebot/internal/config"
	"groovebot/internal/music/player"
	"groovebot/internal/music/queue"
	"groovebot/internal/music/resolver"
	"groovebot/internal/music/session"
	"groovebot/internal/music/stream"
	"groovebot/internal/storage"
	"groovebot/pkg/cmd"
	"groovebot/pkg/jobmgr"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
	"golang.org/x/time/rate"
)

const (
	// Guilds idle longer than this get their queue state reclaimed.
	reclaimGrace    = 30 * time.Minute
	reclaimInterval = 10 * time.Minute
)

// Bot is the Discord runtime: one gateway session, one playback controller
// per guild.
type Bot struct {
	dg              *discordgo.Session
	cfg             *config.Config
	storage         *storage.Storage
	queue           *queue.Store
	sessions        *session.Manager
	resolver        *resolver.Resolver
	opener          stream.Opener
	registerLimiter *rate.Limiter

	mu          sync.Mutex
	controllers map[string]*player.Controller
}

// StartBot runs the Discord bot until ctx is cancelled.
func StartBot(ctx context.Context, cfg *config.Config, store *storage.Storage) error {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b := &Bot{
		dg:              dg,
		cfg:             cfg,
		storage:         store,
		queue:           queue.NewStore(),
		sessions:        session.NewManager(voiceJoiner(dg)),
		resolver:        resolver.New(stream.NewHTTPClient(cfg.MediaProxy)),
		opener:          stream.NewYouTubeOpener(cfg.MediaProxy),
		registerLimiter: newRegisterLimiter(),
		controllers:     make(map[string]*player.Controller),
	}

	b.registerBotCommands()
	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onGuildDelete)
	dg.AddHandler(b.onInteractionCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	if err := jobmgr.DefaultManager.StartAsync("queue-reclaim", b.runQueueReclaimer); err != nil {
		log.Println("[WARN] Failed to start queue reclaimer:", err)
	}

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	b.stopAllPlayback()
	_ = jobmgr.DefaultManager.Stop("queue-reclaim")
	return nil
}

// registerBotCommands populates the universal registry. The play command
// needs the bot instance, so registration happens here rather than in init().
func (b *Bot) registerBotCommands() {
	command.RegisterCommand(
		&music.PlayCommand{Bot: b},
		command.WithGuildOnly(),
		command.WithCommandLogger(),
	)
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages
}

// Controller returns the guild's playback controller, creating it on first use.
func (b *Bot) Controller(guildID string) *player.Controller {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.controllers[guildID]; ok {
		return c
	}
	c := player.New(guildID, b.queue, b.sessions, b.opener)
	b.controllers[guildID] = c
	return c
}

// Queue returns the shared per-guild queue store.
func (b *Bot) Queue() *queue.Store { return b.queue }

// Resolver returns the shared input resolver.
func (b *Bot) Resolver() *resolver.Resolver { return b.resolver }

// onReady leaves blacklisted guilds, registers slash commands and sets the
// presence line.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	botInfo, err := s.User("@me")
	if err != nil {
		log.Println("[WARN] Error retrieving bot user:", err)
		return
	}

	for _, g := range r.Guilds {
		if b.isGuildBlacklisted(g.ID) {
			log.Printf("[INFO] Leaving blacklisted guild: %s", g.ID)
			if err := s.GuildLeave(g.ID); err != nil {
				log.Printf("[ERR] Failed to leave guild %s: %v", g.ID, err)
			}
			continue
		}

		if b.cfg.InitSlashCommands {
			if err := b.registerCommands(g.ID); err != nil {
				log.Println("[ERR] Error registering slash commands for guild", g.ID, ":", err)
			}
		}
	}
	if !b.cfg.InitSlashCommands {
		log.Println("[INFO] Registering slash commands skipped")
	}

	b.updatePresence()
	log.Printf("[INFO] ✅ Discord bot %v is running.", botInfo.Username)
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.isGuildBlacklisted(g.Guild.ID) {
		log.Printf("[INFO] Leaving blacklisted guild: %s (%s)", g.Guild.ID, g.Guild.Name)
		if err := s.GuildLeave(g.Guild.ID); err != nil {
			log.Printf("[ERR] Failed to leave guild %s: %v", g.Guild.ID, err)
		}
		return
	}

	log.Printf("[INFO] Bot added to guild: %s (%s)", g.Guild.ID, g.Guild.Name)
	if b.cfg.InitSlashCommands {
		if err := b.registerCommands(g.Guild.ID); err != nil {
			log.Printf("[ERR] Failed to register commands for new guild %s: %v", g.Guild.ID, err)
		}
	}
	b.updatePresence()
}

func (b *Bot) onGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		return // outage, not a removal
	}
	log.Printf("[INFO] Bot removed from guild: %s", g.ID)
	b.dropGuild(g.ID)
	b.updatePresence()
}

// updatePresence advertises how many servers the bot plays on.
func (b *Bot) updatePresence() {
	n := len(b.dg.State.Guilds)
	status := fmt.Sprintf("music on %d servers", n)
	if n == 1 {
		status = "music on 1 server"
	}
	if err := b.dg.UpdateListeningStatus(status); err != nil {
		log.Println("[WARN] Failed to update presence:", err)
	}
}

// onInteractionCreate dispatches slash commands, autocomplete queries and
// message components to the registry.
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchSlash(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.dispatchAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		b.dispatchComponent(s, i)
	}
}

func (b *Bot) dispatchSlash(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	c := cmd.DefaultRegistry.Get(name)
	if c == nil {
		log.Printf("[WARN] Unknown command: %s", name)
		return
	}

	ctx := &command.SlashInteractionContext{
		Session: s,
		Event:   i,
		Storage: b.storage,
	}
	err := c.Run(context.Background(), &cmd.Invocation{Data: ctx})
	if err != nil && isAckRace(err) {
		log.Printf("[DEBUG] Ack race on slash command %s: %v", name, err)
		return
	}
	if err != nil {
		log.Printf("[ERR] Error running slash command %s: %v", name, err)
		_ = RespondEmbedEphemeral(s, i, embed.NewEmbed().
			SetColor(command.EmbedColor).
			SetDescription(fmt.Sprintf("Error running command: %v", err)).
			MessageEmbed)
	}
}

func (b *Bot) dispatchAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	c := cmd.DefaultRegistry.Get(name)
	if c == nil {
		return
	}
	handler, ok := cmd.Root(c).(command.AutocompleteHandler)
	if !ok {
		return
	}

	ctx := &command.AutocompleteInteractionContext{
		Session: s,
		Event:   i,
		Storage: b.storage,
	}
	if err := handler.Autocomplete(ctx); err != nil && !isAckRace(err) {
		log.Printf("[WARN] Autocomplete failed for %s: %v", name, err)
	}
}

func (b *Bot) dispatchComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	matched := b.matchComponentCommand(customID)
	if matched == nil {
		log.Printf("[WARN] No matching component for customID: %s", customID)
		return
	}

	handler, ok := cmd.Root(matched).(command.ComponentInteractionHandler)
	if !ok {
		return
	}

	ctx := &command.ComponentInteractionContext{
		Session: s,
		Event:   i,
		Storage: b.storage,
	}
	err := handler.Component(ctx)
	if err != nil && isAckRace(err) {
		log.Printf("[DEBUG] Ack race on component %s: %v", customID, err)
		return
	}
	if err != nil {
		log.Printf("[ERR] Error running component %s: %v", customID, err)
		_ = RespondEmbedEphemeral(s, i, embed.NewEmbed().
			SetColor(command.EmbedColor).
			SetDescription(fmt.Sprintf("Error: %v", err)).
			MessageEmbed)
	}
}

// matchComponentCommand finds the command owning a component custom ID,
// either by command name prefix or by a declared component namespace.
func (b *Bot) matchComponentCommand(customID string) cmd.Command {
	for _, c := range cmd.DefaultRegistry.GetAll() {
		root := cmd.Root(c)
		if pp, ok := root.(command.ComponentPrefixProvider); ok {
			if prefix := pp.ComponentPrefix(); prefix != "" && hasIDPrefix(customID, prefix) {
				return c
			}
		}
		if hasIDPrefix(customID, c.Name()) {
			return c
		}
	}
	return nil
}

func hasIDPrefix(customID, prefix string) bool {
	return customID == prefix ||
		len(customID) > len(prefix) && customID[:len(prefix)+1] == prefix+":"
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

// dropGuild tears down playback state after the bot leaves a guild.
func (b *Bot) dropGuild(guildID string) {
	b.mu.Lock()
	c, ok := b.controllers[guildID]
	delete(b.controllers, guildID)
	b.mu.Unlock()

	if ok {
		c.Stop()
	}
	b.queue.Clear(guildID)
}

func (b *Bot) stopAllPlayback() {
	b.mu.Lock()
	controllers := make([]*player.Controller, 0, len(b.controllers))
	for _, c := range b.controllers {
		controllers = append(controllers, c)
	}
	b.mu.Unlock()

	for _, c := range controllers {
		c.Stop()
	}
}

// runQueueReclaimer periodically drops queue state for guilds that have been
// idle past the grace window.
func (b *Bot) runQueueReclaimer(ctx context.Context) error {
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dropped := b.queue.Reclaim(reclaimGrace, func(guildID string) bool {
				b.mu.Lock()
				c, ok := b.controllers[guildID]
				b.mu.Unlock()
				return ok && c.Busy()
			})
			if dropped > 0 {
				log.Printf("[INFO] Reclaimed queue state for %d idle guild(s)", dropped)
			}
		}
	}
}
