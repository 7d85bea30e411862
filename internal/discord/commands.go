package discord

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"groovebot/internal/command"
	"groovebot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// appID returns the application ID commands are registered under.
func (b *Bot) appID() string {
	if b.cfg.DiscordAppID != "" {
		return b.cfg.DiscordAppID
	}
	if b.dg.State != nil && b.dg.State.User != nil {
		return b.dg.State.User.ID
	}
	return ""
}

// registerCommands syncs slash commands for a guild with Discord: deletes
// obsolete ones, creates/updates commands whose definition has changed since
// the hashes cached in storage.
func (b *Bot) registerCommands(guildID string) error {
	appID := b.appID()

	remote, _ := b.dg.ApplicationCommands(appID, guildID)
	remoteByName := make(map[string]*discordgo.ApplicationCommand, len(remote))
	for _, c := range remote {
		remoteByName[c.Name] = c
	}

	local := buildCommandDefinitions()
	cachedHashes, err := b.storage.GetCommandHashes(guildID)
	if err != nil {
		log.Printf("[WARN] [%s] Failed to load command hash cache: %v", guildID, err)
		cachedHashes = map[string]string{}
	}

	b.deleteObsoleteCommands(appID, guildID, remoteByName, local, cachedHashes)
	b.upsertChangedCommands(appID, guildID, local, cachedHashes)

	if err := b.storage.SetCommandHashes(guildID, cachedHashes); err != nil {
		log.Printf("[WARN] [%s] Failed to save command hash cache: %v", guildID, err)
	}
	return nil
}

// buildCommandDefinitions returns ApplicationCommand definitions for all
// registered commands.
func buildCommandDefinitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range cmd.DefaultRegistry.GetAll() {
		if def := commandDefinition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// deleteObsoleteCommands removes commands from Discord that are no longer in
// the local registry.
func (b *Bot) deleteObsoleteCommands(appID, guildID string, remote map[string]*discordgo.ApplicationCommand, local []*discordgo.ApplicationCommand, hashes map[string]string) {
	localNames := make(map[string]struct{}, len(local))
	for _, d := range local {
		localNames[d.Name] = struct{}{}
	}

	for name, rc := range remote {
		if _, exists := localNames[name]; exists {
			continue
		}
		log.Printf("[INFO] [%s] Deleting obsolete command: %s", guildID, name)
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			log.Printf("[ERR] [%s] Failed to delete %s: %v", guildID, name, err)
		} else {
			delete(hashes, name)
		}
	}
}

// upsertChangedCommands creates or updates commands whose hash differs from
// the cached value, pacing calls with the registration limiter.
func (b *Bot) upsertChangedCommands(appID, guildID string, defs []*discordgo.ApplicationCommand, hashes map[string]string) {
	var changed []*discordgo.ApplicationCommand
	newHashes := make(map[string]string, len(defs))
	for _, d := range defs {
		h := hashCommand(d)
		newHashes[d.Name] = h
		if hashes[d.Name] != h {
			changed = append(changed, d)
		}
	}
	if len(changed) == 0 {
		return
	}

	log.Printf("[INFO] [%s] Registering %d changed command(s)...", guildID, len(changed))
	for _, d := range changed {
		if err := b.registerLimiter.Wait(context.Background()); err != nil {
			return
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, d); err != nil {
			log.Printf("[ERR] [%s] Failed to register %s: %v", guildID, d.Name, err)
		} else {
			log.Printf("[DONE] [%s] Registered: %s", guildID, d.Name)
			hashes[d.Name] = newHashes[d.Name]
		}
	}
}

// commandDefinition extracts the ApplicationCommand definition from a
// registered command, walking through middleware wrappers via cmd.Root.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	root := cmd.Root(c)
	if slash, ok := root.(command.SlashProvider); ok {
		if def := slash.SlashDefinition(); def != nil {
			if def.Type == 0 {
				def.Type = discordgo.ChatApplicationCommand
			}
			return def
		}
	}
	return nil
}

// newRegisterLimiter paces ApplicationCommandCreate calls; Discord allows
// roughly 200 command writes per day per guild, and bursts trip the global
// rate limit fast.
func newRegisterLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(20), 1)
}

// hashCommand returns a deterministic SHA-1 of a command's stable fields.
// Used to skip re-registration when nothing has changed.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]interface{}{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	sum := sha1.Sum(data)
	return fmt.Sprintf("%x", sum)
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]interface{} {
	out := make([]map[string]interface{}, len(opts))
	for i, o := range opts {
		entry := map[string]interface{}{
			"name":         o.Name,
			"description":  o.Description,
			"type":         o.Type,
			"required":     o.Required,
			"autocomplete": o.Autocomplete,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]interface{}, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]interface{}{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
