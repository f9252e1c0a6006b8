package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) autocompleteCampgrounds(i *discordgo.InteractionCreate, query string) []*discordgo.ApplicationCommandOptionChoice {
	ctx := context.Background()
	cgs, err := b.store.ListCampgrounds(ctx, query)
	if err != nil {
		b.logger.Warn("list campgrounds failed", "err", err)
		return nil
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(cgs))
	for _, c := range cgs {
		display := sanitizeChoiceName(c.Name, c.Provider, c.Rating)
		value := sanitizeChoiceValue(strings.Join([]string{c.Provider, c.ID, c.Name}, "||"))
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: display, Value: value})
		if len(choices) >= 25 { // Discord limit
			break
		}
	}
	return choices
}

// autocompleteRemoveIDs suggests the caller's own active scans as choices.
func (b *Bot) autocompleteRemoveIDs(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandOptionChoice {
	uid := getUserID(i)
	scans, err := b.store.ListUserActiveScans(context.Background(), uid)
	if err != nil {
		b.logger.Warn("list active scans failed", "err", err)
		return nil
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, 25)
	for _, sc := range scans {
		name := sc.CampgroundID
		if cg, ok, _ := b.store.GetCampgroundByID(context.Background(), sc.Provider, sc.CampgroundID); ok {
			name = cg.Name
		}
		label := sc.CheckIn.Format("2006-01-02") + "→" + sc.CheckOut.Format("2006-01-02")
		display := sanitizeGenericText(label + " • " + name)
		value := sanitizeChoiceValue(strconv.FormatInt(sc.ID, 10))
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: display, Value: value})
		if len(choices) >= 25 {
			break
		}
	}
	if len(choices) == 0 {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: "No active scans", Value: "0"})
	}
	return choices
}
