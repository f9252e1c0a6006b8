package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleAddCommand(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := optMap(sub.Options)
	campgroundResponse, ok := opts["campground"]
	if !ok || campgroundResponse == nil {
		respond(s, i, "campground selection is required")
		return
	}
	if _, ok := opts["checkin"]; !ok {
		respond(s, i, "check-in date is required")
		return
	}
	if _, ok := opts["checkout"]; !ok {
		respond(s, i, "check-out date is required")
		return
	}

	parts := strings.SplitN(campgroundResponse.StringValue(), "||", 3)
	if len(parts) != 3 {
		respond(s, i, "invalid campground selection")
		return
	}
	provider, campgroundID, campgroundName := parts[0], parts[1], parts[2]

	start, end, err := parseDates(opts["checkin"].StringValue(), opts["checkout"].StringValue())
	if err != nil {
		respond(s, i, "invalid dates: "+err.Error())
		return
	}
	if !start.Before(end) {
		respond(s, i, "checkin must be before checkout")
		return
	}

	ctx := context.Background()
	uid := getUserID(i)
	scan, err := b.store.AddScan(ctx, uid, provider, campgroundID, start, end)
	if err != nil {
		respond(s, i, "error: "+err.Error())
		return
	}
	if err := b.store.RecalculatePollingJob(ctx, provider, campgroundID, b.defaultPollFrequencyMin); err != nil {
		b.logger.Warn("recalculate polling job failed", "err", err)
	}

	formattedName := b.formatCampgroundWithLink(ctx, provider, campgroundID, campgroundName)
	respond(s, i, fmt.Sprintf("Now scanning: %s, dates %s to %s (%d nights)",
		formattedName, scan.CheckIn.Format("2006-01-02"), scan.CheckOut.Format("2006-01-02"), scan.Nights))
}
