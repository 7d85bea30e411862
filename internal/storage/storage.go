package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keshon/datastore"
)

const (
	commandHistoryLimit int = 20
	trackHistoryLimit   int = 12
)

// Storage persists per-guild bot state on top of a key-value datastore.
// One Record per guild, keyed by guild ID.
type Storage struct {
	ds *datastore.DataStore
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Datetime    time.Time `json:"datetime"`
}

type TrackHistoryRecord struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Author   string    `json:"author"`
	PlayedAt time.Time `json:"played_at"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	TrackHistoryList    []TrackHistoryRecord   `json:"track_history"`
	CommandHashes       map[string]string      `json:"command_hashes"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// getOrCreateGuildRecord fetches the guild's Record, creating an empty one if
// missing. The datastore hands back untyped data, so it goes through a JSON
// round trip.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		newRecord := &Record{
			CommandsHistoryList: []CommandHistoryRecord{},
			CommandHashes:       map[string]string{},
		}
		s.ds.Add(guildID, newRecord)
		return newRecord, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	err = json.Unmarshal(jsonData, &record)
	if err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if record.CommandHashes == nil {
		record.CommandHashes = map[string]string{}
	}

	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	if len(record.TrackHistoryList) > trackHistoryLimit {
		record.TrackHistoryList = record.TrackHistoryList[len(record.TrackHistoryList)-trackHistoryLimit:]
	}

	return &record, nil
}

// SetCommand appends a command execution to the guild's history.
func (s *Storage) SetCommand(guildID, channelID, channelName, guildName, userID, username, commandName string) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.CommandsHistoryList = append(record.CommandsHistoryList, CommandHistoryRecord{
		ChannelID:   channelID,
		ChannelName: channelName,
		GuildName:   guildName,
		UserID:      userID,
		Username:    username,
		Command:     commandName,
		Datetime:    time.Now(),
	})
	s.ds.Add(guildID, record)
	return nil
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

// AppendTrackToHistory records a played track for the guild.
func (s *Storage) AppendTrackToHistory(guildID string, track TrackHistoryRecord) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.TrackHistoryList = append(record.TrackHistoryList, track)
	if len(record.TrackHistoryList) > trackHistoryLimit {
		record.TrackHistoryList = record.TrackHistoryList[len(record.TrackHistoryList)-trackHistoryLimit:]
	}
	s.ds.Add(guildID, record)
	return nil
}

func (s *Storage) FetchTrackHistory(guildID string) ([]TrackHistoryRecord, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.TrackHistoryList, nil
}

// GetCommandHashes returns the cached slash command hashes for a guild.
func (s *Storage) GetCommandHashes(guildID string) (map[string]string, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandHashes, nil
}

// SetCommandHashes replaces the cached slash command hashes for a guild.
func (s *Storage) SetCommandHashes(guildID string, hashes map[string]string) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.CommandHashes = hashes
	s.ds.Add(guildID, record)
	return nil
}
