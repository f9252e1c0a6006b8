package bot

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// handleComponentInteraction completes the /scan remove select-menu flow:
// the caller picked a scan id from the options handleRemoveCommand built.
func (b *Bot) handleComponentInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if data.CustomID != "remove_scan" || len(data.Values) == 0 {
		return
	}
	id, err := strconv.ParseInt(data.Values[0], 10, 64)
	if err != nil {
		respond(s, i, "invalid selection")
		return
	}
	uid := getUserID(i)
	if err := b.deactivateScan(context.Background(), id, uid); err != nil {
		respond(s, i, "error: "+err.Error())
		return
	}
	respond(s, i, "removed")
}
