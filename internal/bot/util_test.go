package bot

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestParseDates_ValidRange(t *testing.T) {
	in, out, err := parseDates("2025-06-10", "2025-06-13")
	if err != nil {
		t.Fatalf("parseDates: %v", err)
	}
	if in.Month() != 6 || in.Day() != 10 || out.Day() != 13 {
		t.Fatalf("unexpected parsed dates: %v / %v", in, out)
	}
}

func TestParseDates_InvalidFormat(t *testing.T) {
	if _, _, err := parseDates("06/10/2025", "2025-06-13"); err == nil {
		t.Fatal("expected an error for a non-ISO date string")
	}
}

func TestSanitizeGenericText_TruncatesAndHandlesEmpty(t *testing.T) {
	if got := sanitizeGenericText("  "); got != "-" {
		t.Fatalf("expected blank input to sanitize to '-', got %q", got)
	}
	long := strings.Repeat("a", 150)
	got := sanitizeGenericText(long)
	if len(got) != outputMaxLength {
		t.Fatalf("expected truncation to %d runes, got %d", outputMaxLength, len(got))
	}
}

func TestSanitizeChoiceName_AppendsTrailerWhenShort(t *testing.T) {
	got := sanitizeChoiceName("Yosemite", "recreation_gov", 4.567)
	if !strings.HasPrefix(got, "Yosemite") || !strings.Contains(got, "recreation_gov") {
		t.Fatalf("expected name plus provider/rating trailer, got %q", got)
	}
}

func TestSanitizeChoiceName_EmptyNameReturnsDash(t *testing.T) {
	if got := sanitizeChoiceName("   ", "recreation_gov", 4.5); got != "-" {
		t.Fatalf("expected '-' for a blank name, got %q", got)
	}
}

func TestSanitizeChoiceName_TruncatesLongNameWithEllipsis(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := sanitizeChoiceName(long, "recreation_gov", 4.5)
	if len([]rune(got)) > outputMaxLength+1 {
		t.Fatalf("expected the name truncated to fit the 100-char choice limit, got %d runes: %q", len([]rune(got)), got)
	}
	if !strings.Contains(got, "…") {
		t.Fatalf("expected an ellipsis marking the truncation, got %q", got)
	}
}

func TestSanitizeChoiceValue_TruncatesToByteLimit(t *testing.T) {
	long := strings.Repeat("y", 150)
	got := sanitizeChoiceValue(long)
	if len(got) != outputMaxLength {
		t.Fatalf("expected truncation to %d bytes, got %d", outputMaxLength, len(got))
	}
}

func TestSanitizeChoiceValue_ShortStringUnchanged(t *testing.T) {
	if got := sanitizeChoiceValue("abc"); got != "abc" {
		t.Fatalf("expected short strings returned unchanged, got %q", got)
	}
}

func TestGetUserID_PrefersGuildMemberOverUser(t *testing.T) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "member-id"}},
		User:   &discordgo.User{ID: "user-id"},
	}}
	if got := getUserID(i); got != "member-id" {
		t.Fatalf("expected guild member id preferred, got %q", got)
	}
}

func TestGetUserID_FallsBackToDirectMessageUser(t *testing.T) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "dm-user-id"},
	}}
	if got := getUserID(i); got != "dm-user-id" {
		t.Fatalf("expected the DM user id, got %q", got)
	}
}

func TestGetUserID_NoUserReturnsEmpty(t *testing.T) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	if got := getUserID(i); got != "" {
		t.Fatalf("expected empty string when no user is present, got %q", got)
	}
}

func TestOptMap_IndexesByName(t *testing.T) {
	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "checkin"},
		{Name: "checkout"},
	}
	m := optMap(opts)
	if len(m) != 2 || m["checkin"] == nil || m["checkout"] == nil {
		t.Fatalf("expected both options indexed by name, got %+v", m)
	}
}
