package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// handleListCommand prints, for each of the caller's active scans: the
// campground (linked when a URL is available), the date range and nights,
// and whether a notification has already fired for it.
func (b *Bot) handleListCommand(s *discordgo.Session, i *discordgo.InteractionCreate, _ *discordgo.ApplicationCommandInteractionDataOption) {
	uid := getUserID(i)
	scans, err := b.store.ListUserActiveScans(context.Background(), uid)
	if err != nil {
		respond(s, i, "error: "+err.Error())
		return
	}
	if len(scans) == 0 {
		respond(s, i, "no active scans")
		return
	}
	sort.Slice(scans, func(a, c int) bool { return scans[a].ID < scans[c].ID })

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: 1 << 6},
	})

	weekday := func(t time.Time) string { return t.Format("Mon") }
	embeds := make([]*discordgo.MessageEmbed, 0, len(scans))
	for _, sc := range scans {
		name := b.formatCampgroundWithLink(context.Background(), sc.Provider, sc.CampgroundID, sc.CampgroundID)

		desc := strings.Builder{}
		desc.WriteString(name + "\n")
		desc.WriteString(fmt.Sprintf("%s (%s) -> %s (%s) (%d nights)\n",
			sc.CheckIn.Format("2006-01-02"), weekday(sc.CheckIn), sc.CheckOut.Format("2006-01-02"), weekday(sc.CheckOut), sc.Nights))
		if sc.NotificationSent {
			desc.WriteString("notified: yes\n")
		} else {
			desc.WriteString("notified: not yet\n")
		}

		embeds = append(embeds, &discordgo.MessageEmbed{
			Description: desc.String(),
			Timestamp:   time.Now().Format(time.RFC3339),
		})
		if len(embeds) == 10 {
			if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Embeds: embeds, Flags: 1 << 6}); err != nil {
				b.logger.Warn("list followup send failed", "err", err)
			}
			embeds = nil
		}
	}
	if len(embeds) > 0 {
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Embeds: embeds, Flags: 1 << 6}); err != nil {
			b.logger.Warn("list followup send failed", "err", err)
		}
	}
}
