package music

import (
	"testing"
	"time"

	"groovebot/internal/music/track"

	"github.com/bwmarrin/discordgo"
)

func TestParseControlID(t *testing.T) {
	tests := []struct {
		customID  string
		wantKind  string
		wantGuild string
		wantOK    bool
	}{
		{"music:pause:123", "pause", "123", true},
		{"music:pick:987654", "pick", "987654", true},
		{"music:stop:", "", "", false},
		{"music::123", "", "", false},
		{"other:pause:123", "", "", false},
		{"music:pause", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		kind, guildID, ok := parseControlID(tt.customID)
		if ok != tt.wantOK || kind != tt.wantKind || guildID != tt.wantGuild {
			t.Errorf("parseControlID(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.customID, kind, guildID, ok, tt.wantKind, tt.wantGuild, tt.wantOK)
		}
	}
}

func TestControlID_RoundTrip(t *testing.T) {
	id := controlID(controlSkip, "g42")
	kind, guildID, ok := parseControlID(id)
	if !ok || kind != controlSkip || guildID != "g42" {
		t.Errorf("round trip failed: %q -> (%q, %q, %v)", id, kind, guildID, ok)
	}
}

func TestBuildControls(t *testing.T) {
	rows := buildControls("g1", false, false, false)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0].(discordgo.ActionsRow)
	if len(row.Components) != 4 {
		t.Fatalf("buttons = %d, want 4", len(row.Components))
	}

	pause := row.Components[0].(discordgo.Button)
	if pause.Label != "Pause" {
		t.Errorf("first button label = %q, want Pause", pause.Label)
	}
	if pause.CustomID != "music:pause:g1" {
		t.Errorf("pause custom ID = %q", pause.CustomID)
	}

	// Paused playback flips the button into a resume control.
	rows = buildControls("g1", true, false, false)
	pause = rows[0].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	if pause.Label != "Resume" {
		t.Errorf("paused button label = %q, want Resume", pause.Label)
	}
	if pause.Style != discordgo.PrimaryButton {
		t.Errorf("resume style = %v, want PrimaryButton", pause.Style)
	}

	rows = buildControls("g1", false, true, false)
	loop := rows[0].(discordgo.ActionsRow).Components[2].(discordgo.Button)
	if loop.Style != discordgo.PrimaryButton {
		t.Errorf("loop-on style = %v, want PrimaryButton", loop.Style)
	}
}

func TestBuildControls_Disabled(t *testing.T) {
	rows := buildControls("g1", false, false, true)
	for _, comp := range rows[0].(discordgo.ActionsRow).Components {
		if !comp.(discordgo.Button).Disabled {
			t.Error("all buttons should be disabled")
		}
	}
}

func TestBuildPicker(t *testing.T) {
	candidates := []track.Candidate{
		{Title: "First", Duration: 91 * time.Second, URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa"},
		{Title: "Second", Duration: 3 * time.Minute, URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb"},
	}

	rows := buildPicker("g1", candidates, false)
	menu := rows[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	if menu.CustomID != "music:pick:g1" {
		t.Errorf("picker custom ID = %q", menu.CustomID)
	}
	if len(menu.Options) != 2 {
		t.Fatalf("options = %d, want 2", len(menu.Options))
	}
	if menu.Options[0].Label != "First (1:31)" {
		t.Errorf("option label = %q, want %q", menu.Options[0].Label, "First (1:31)")
	}
	if menu.Options[1].Value != candidates[1].URL {
		t.Errorf("option value = %q, want candidate URL", menu.Options[1].Value)
	}
}
