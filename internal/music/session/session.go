// Package session tracks the bot's voice presence per guild: at most one live
// connection and one bound playback at a time. The connection is owned
// exclusively by the guild's session and released when the queue drains or
// playback is stopped.
package session

import (
	"errors"
	"log"
	"sync"
)

var (
	// ErrNotInVoiceChannel: the requester has no voice channel and no
	// connection exists yet.
	ErrNotInVoiceChannel = errors.New("you need to join a voice channel first")
	// ErrAlreadyInOtherChannel: the bot is already connected to a different
	// channel in this guild. Moving silently would desync the old channel's
	// listeners, so the request fails explicitly.
	ErrAlreadyInOtherChannel = errors.New("already playing in another voice channel")
)

// Connection is the slice of a voice connection the session layer needs.
// The discord adapter wraps *discordgo.VoiceConnection; tests use fakes.
type Connection interface {
	ChannelID() string
	Speaking(bool) error
	Send(opus []byte)
	Disconnect() error
}

// Joiner joins a guild voice channel and returns the live connection.
type Joiner func(guildID, channelID string) (Connection, error)

type guildSession struct {
	conn Connection
	stop func() // stops the currently bound playback, nil if none
}

// Manager owns all guild sessions.
type Manager struct {
	mu       sync.Mutex
	join     Joiner
	sessions map[string]*guildSession
}

// NewManager creates a Manager using join to establish connections.
func NewManager(join Joiner) *Manager {
	return &Manager{
		join:     join,
		sessions: make(map[string]*guildSession),
	}
}

// AcquireConnection returns the guild's connection, joining the requester's
// channel if there is none yet. Reuses the existing connection when the bot
// is already in the requester's channel (or the requester has left voice but
// a connection is still live).
func (m *Manager) AcquireConnection(guildID, requesterChannelID string) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[guildID]; ok && s.conn != nil {
		if requesterChannelID == "" || s.conn.ChannelID() == requesterChannelID {
			return s.conn, nil
		}
		return nil, ErrAlreadyInOtherChannel
	}

	if requesterChannelID == "" {
		return nil, ErrNotInVoiceChannel
	}

	conn, err := m.join(guildID, requesterChannelID)
	if err != nil {
		return nil, err
	}
	m.sessions[guildID] = &guildSession{conn: conn}
	log.Printf("[INFO] Joined voice channel %s on guild %s", requesterChannelID, guildID)
	return conn, nil
}

// BindPlayer registers the active playback's stop function, stopping and
// replacing any previous one. Two playbacks must never feed one connection.
func (m *Manager) BindPlayer(guildID string, stop func()) {
	m.mu.Lock()
	s, ok := m.sessions[guildID]
	var prev func()
	if ok {
		prev = s.stop
		s.stop = stop
	}
	m.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Release disconnects the guild's connection and drops the session. Best
// effort: a failed disconnect is logged, never propagated.
func (m *Manager) Release(guildID string) {
	m.mu.Lock()
	s, ok := m.sessions[guildID]
	if ok {
		delete(m.sessions, guildID)
	}
	m.mu.Unlock()

	if !ok || s.conn == nil {
		return
	}
	if err := s.conn.Disconnect(); err != nil {
		log.Printf("[WARN] Failed to disconnect voice on guild %s: %v", guildID, err)
	}
	log.Printf("[INFO] Released voice session on guild %s", guildID)
}

// Active reports whether the guild currently holds a connection.
func (m *Manager) Active(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[guildID]
	return ok
}
