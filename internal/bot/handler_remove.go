package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleRemoveCommand(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	uid := getUserID(i)
	opts := optMap(sub.Options)
	if opt, ok := opts["id"]; ok && opt != nil {
		id := opt.IntValue()
		if err := b.deactivateScan(context.Background(), id, uid); err != nil {
			respond(s, i, "error: "+err.Error())
			return
		}
		respond(s, i, "removed")
		return
	}

	scans, err := b.store.ListUserActiveScans(context.Background(), uid)
	if err != nil {
		respond(s, i, "error: "+err.Error())
		return
	}
	options := []discordgo.SelectMenuOption{}
	for _, sc := range scans {
		name := sc.CampgroundID
		if cg, ok, _ := b.store.GetCampgroundByID(context.Background(), sc.Provider, sc.CampgroundID); ok {
			name = cg.Name
		}
		label := fmt.Sprintf("%s → %s • %d night(s)", sc.CheckIn.Format("2006-01-02"), sc.CheckOut.Format("2006-01-02"), sc.Nights)
		options = append(options, discordgo.SelectMenuOption{Label: label, Description: name, Value: strconv.FormatInt(sc.ID, 10)})
		if len(options) >= 25 {
			break
		}
	}
	if len(options) == 0 {
		respond(s, i, "no active scans")
		return
	}
	selectMenu := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    "remove_scan",
				Placeholder: "Select a scan to remove",
				Options:     options,
			},
		},
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "Pick a scan to remove. You'll get a confirmation after selection.",
			Components: []discordgo.MessageComponent{selectMenu},
			Flags:      1 << 6,
		},
	}); err != nil {
		b.logger.Warn("remove respond failed", "err", err)
	}
}
