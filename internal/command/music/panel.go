package music

import (
	"fmt"
	"log"
	"sync"
	"time"

	"groovebot/internal/command"
	"groovebot/internal/music/player"
	"groovebot/internal/music/queue"
	"groovebot/internal/music/stream"
	"groovebot/internal/music/track"
	"groovebot/internal/storage"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
)

// panelIdleGrace keeps the transport buttons alive a bit past the expected
// track end so a slow stream doesn't orphan them mid-play.
const panelIdleGrace = time.Minute

// panels tracks the per-guild now-playing message.
var panels = newPanelManager()

type guildPanel struct {
	mu          sync.Mutex
	session     *discordgo.Session
	store       *storage.Storage
	queue       *queue.Store
	ctrl        *player.Controller
	guildID     string
	channelID   string
	requesterID string
	messageID   string
	expire      *time.Timer
	consuming   bool
}

type panelManager struct {
	mu     sync.Mutex
	guilds map[string]*guildPanel
}

func newPanelManager() *panelManager {
	return &panelManager{guilds: make(map[string]*guildPanel)}
}

// Bind points the guild's panel at a text channel and requester and starts
// consuming the controller's events if it isn't already.
func (m *panelManager) Bind(s *discordgo.Session, store *storage.Storage, q *queue.Store, ctrl *player.Controller, guildID, channelID, requesterID string) {
	m.mu.Lock()
	p, ok := m.guilds[guildID]
	if !ok {
		p = &guildPanel{guildID: guildID}
		m.guilds[guildID] = p
	}
	p.session = s
	p.store = store
	p.queue = q
	p.ctrl = ctrl
	p.channelID = channelID
	p.requesterID = requesterID
	start := !p.consuming
	p.consuming = true
	m.mu.Unlock()

	if start {
		go m.consume(guildID, ctrl.Events())
	}
}

// get returns the guild's panel, or nil.
func (m *panelManager) get(guildID string) *guildPanel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guilds[guildID]
}

// consume drives panel updates off the controller's event stream.
func (m *panelManager) consume(guildID string, events <-chan player.Event) {
	for evt := range events {
		p := m.get(guildID)
		if p == nil {
			continue
		}
		switch evt.Type {
		case player.EventTrackStarted:
			m.onTrackStarted(p, evt.Track)
		case player.EventTrackEnded:
			if evt.Reason == stream.EndStopped {
				m.finishPanel(p, "Stopped.")
			}
		case player.EventDrained:
			m.finishPanel(p, "Queue finished.")
		case player.EventError:
			m.reportError(p, evt.Err)
		}
	}
}

func (m *panelManager) onTrackStarted(p *guildPanel, t *track.Track) {
	if p.store != nil {
		err := p.store.AppendTrackToHistory(p.guildID, storage.TrackHistoryRecord{
			URL:      t.URL,
			Title:    t.Title,
			Author:   t.Author,
			PlayedAt: time.Now(),
		})
		if err != nil {
			log.Println("[WARN] Failed to record track history:", err)
		}
	}

	m.render(p, t, false, "")

	// The panel outlives the track only by a grace window.
	p.mu.Lock()
	if p.expire != nil {
		p.expire.Stop()
	}
	if t.Duration > 0 {
		guildID := p.guildID
		p.expire = time.AfterFunc(t.Duration+panelIdleGrace, func() {
			if cur := m.get(guildID); cur != nil && cur.ctrl.State() == player.StateIdle {
				m.finishPanel(cur, "")
			}
		})
	}
	p.mu.Unlock()
}

// render posts the now-playing embed, or edits the existing panel message.
func (m *panelManager) render(p *guildPanel, t *track.Track, disabled bool, footer string) {
	looping := p.queue != nil && p.queue.LoopEnabled(p.guildID)
	paused := p.ctrl != nil && p.ctrl.State() == player.StatePaused

	embedMsg := nowPlayingEmbed(t, footer)
	components := buildControls(p.guildID, paused, looping, disabled)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.messageID == "" {
		msg, err := p.session.ChannelMessageSendComplex(p.channelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{embedMsg},
			Components: components,
		})
		if err != nil {
			log.Println("[WARN] Failed to post now-playing panel:", err)
			return
		}
		p.messageID = msg.ID
		return
	}

	_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         p.messageID,
		Channel:    p.channelID,
		Embeds:     &[]*discordgo.MessageEmbed{embedMsg},
		Components: &components,
	})
	if err != nil {
		log.Println("[WARN] Failed to update now-playing panel:", err)
		// The message may have been deleted; post a fresh one next time.
		p.messageID = ""
	}
}

// refresh re-renders the panel for the current track (pause/loop toggles).
func (m *panelManager) refresh(guildID string) {
	p := m.get(guildID)
	if p == nil || p.ctrl == nil {
		return
	}
	if t := p.ctrl.Current(); t != nil {
		m.render(p, t, false, "")
	}
}

// finishPanel disables the controls and forgets the message.
func (m *panelManager) finishPanel(p *guildPanel, footer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messageID == "" {
		return
	}
	components := buildControls(p.guildID, false, false, true)
	edit := &discordgo.MessageEdit{
		ID:         p.messageID,
		Channel:    p.channelID,
		Components: &components,
	}
	if footer != "" {
		edit.Embeds = &[]*discordgo.MessageEmbed{
			embed.NewEmbed().SetColor(command.EmbedColor).SetDescription("🎵 " + footer).MessageEmbed,
		}
	}
	if _, err := p.session.ChannelMessageEditComplex(edit); err != nil {
		log.Println("[WARN] Failed to retire now-playing panel:", err)
	}
	p.messageID = ""
	if p.expire != nil {
		p.expire.Stop()
		p.expire = nil
	}
}

func (m *panelManager) reportError(p *guildPanel, err error) {
	if err == nil {
		return
	}
	msg := embed.NewEmbed().
		SetColor(command.EmbedColor).
		SetDescription(fmt.Sprintf("⚠️ Playback error: %v", err)).
		MessageEmbed
	if _, sendErr := p.session.ChannelMessageSendEmbed(p.channelID, msg); sendErr != nil {
		log.Println("[WARN] Failed to report playback error:", sendErr)
	}
}

func nowPlayingEmbed(t *track.Track, footer string) *discordgo.MessageEmbed {
	e := embed.NewEmbed().
		SetColor(command.EmbedColor).
		SetTitle("▶️ Now playing").
		SetDescription(fmt.Sprintf("[%s](%s)", t.Title, t.URL))
	if t.Author != "" {
		e = e.AddField("Channel", t.Author)
	}
	if t.Duration > 0 {
		e = e.AddField("Duration", track.FormatDuration(t.Duration))
	}
	if t.Thumbnail != "" {
		e = e.SetThumbnail(t.Thumbnail)
	}
	if footer != "" {
		e = e.SetFooter(footer)
	}
	return e.MessageEmbed
}
