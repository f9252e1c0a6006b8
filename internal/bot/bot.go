// Package bot is the Discord-based external CRUD collaborator spec §1
// treats as out of scope for the core: it populates user_scans and exposes
// the campground-autocomplete callers need. Grounded on the teacher's
// internal/bot (command registration, onReady/onGuildMemberAdd shape),
// trimmed from its full add/add-bulk/map/remove/list/summary/nonsense
// command set down to add/list/remove per SPEC_FULL.md's reduced CRUD
// surface — the bulk-add, map, and stats surfaces have no SPEC_FULL.md
// backing and are dropped, per DESIGN.md.
package bot

import (
	"context"
	"log/slog"

	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/nonsense"
	"github.com/brensch/campwatch/internal/upstream"
	"github.com/bwmarrin/discordgo"
)

type Bot struct {
	session          *discordgo.Session
	guildID          string
	broadcastChannel string

	store                   *db.Store
	registry                *upstream.Registry
	logger                  *slog.Logger
	useGuild                bool // use guild commands (fast iteration) vs global commands (production)
	defaultPollFrequencyMin int
}

func New(store *db.Store, discordSession *discordgo.Session, registry *upstream.Registry, guildID string, useGuild bool, defaultPollFrequencyMin int) (*Bot, error) {
	broadcastChannel, err := GuildIDToChannelID(discordSession, guildID)
	if err != nil {
		slog.Error("failed to resolve broadcast channel", slog.Any("err", err))
		return nil, err
	}
	return &Bot{
		store:                   store,
		session:                 discordSession,
		guildID:                 guildID,
		broadcastChannel:        broadcastChannel,
		logger:                  slog.Default(),
		registry:                registry,
		useGuild:                useGuild,
		defaultPollFrequencyMin: defaultPollFrequencyMin,
	}, nil
}

func (b *Bot) MountHandlers() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(b.onGuildMemberAdd)
	return nil
}

func GuildIDToChannelID(session *discordgo.Session, guildID string) (string, error) {
	channels, err := session.GuildChannels(guildID)
	if err != nil {
		return "", err
	}
	for _, channel := range channels {
		if channel.Type == discordgo.ChannelTypeGuildText {
			return channel.ID, nil
		}
	}
	return "", nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("bot ready", slog.String("user", s.State.User.Username))
	b.registerCommands()
	if b.broadcastChannel != "" {
		_, _ = b.session.ChannelMessageSend(b.broadcastChannel, nonsense.RandomLaunchMessage())
	}
}

func (b *Bot) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	b.logger.Info("new member joined", slog.String("user", m.User.Username), slog.String("id", m.User.ID))

	dmChannel, err := s.UserChannelCreate(m.User.ID)
	if err != nil {
		b.logger.Error("failed to create DM channel", slog.Any("err", err))
	} else {
		instructions := "**Welcome**\n\n" +
			"👃 Add a scan with `/scan add`\n" +
			"⏰ Wait\n" +
			"🔍 I check availability on a schedule\n" +
			"📨 I message you when a site opens up, you click through and book it\n\n" +
			"Send commands directly to me privately. Type `/scan` to see what's available."
		if _, err := s.ChannelMessageSend(dmChannel.ID, instructions); err != nil {
			b.logger.Error("failed to send DM to new user", slog.Any("err", err))
		}
	}

	if b.broadcastChannel == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title:       "⚠️ New scanner alert 🏕️",
		Description: nonsense.RandomSillyGreeting(m.User.ID),
		Color:       0x5865F2,
	}
	if _, err := s.ChannelMessageSendEmbed(b.broadcastChannel, embed); err != nil {
		b.logger.Error("failed to send public welcome message", slog.Any("err", err))
	}
}

func (b *Bot) registerCommands() {
	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "scan",
			Description: "Manage campground availability scans",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "add", Type: discordgo.ApplicationCommandOptionSubCommand, Description: "Add a scan", Options: []*discordgo.ApplicationCommandOption{
					{Name: "campground", Type: discordgo.ApplicationCommandOptionString, Required: true, Description: "Select campground", Autocomplete: true},
					{Name: "checkin", Type: discordgo.ApplicationCommandOptionString, Required: true, Description: "Check-in (YYYY-MM-DD)"},
					{Name: "checkout", Type: discordgo.ApplicationCommandOptionString, Required: true, Description: "Check-out (YYYY-MM-DD)"},
				}},
				{Name: "remove", Type: discordgo.ApplicationCommandOptionSubCommand, Description: "Remove a scan. Blank removes interactively.", Options: []*discordgo.ApplicationCommandOption{
					{Name: "id", Type: discordgo.ApplicationCommandOptionInteger, Required: false, Description: "Scan ID to remove", Autocomplete: true},
				}},
				{Name: "list", Type: discordgo.ApplicationCommandOptionSubCommand, Description: "List all your active scans"},
			},
		},
	}
	appID := b.session.State.Application.ID
	guildID := ""
	if b.useGuild {
		guildID = b.guildID
		b.logger.Info("registering commands for guild", slog.String("guild", guildID))
	} else {
		b.logger.Info("registering commands globally")
	}
	for _, c := range cmds {
		if _, err := b.session.ApplicationCommandCreate(appID, guildID, c); err != nil {
			b.logger.Warn("command registration failed", slog.Any("err", err))
		}
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(s, i)
	case discordgo.InteractionApplicationCommand:
		b.handleApplicationCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponentInteraction(s, i)
	}
}

func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "scan" || len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	focused := findFocusedOption(sub.Options)
	if focused == nil {
		return
	}
	var choices []*discordgo.ApplicationCommandOptionChoice
	switch focused.Name {
	case "campground":
		choices = b.autocompleteCampgrounds(i, focused.StringValue())
	case "id":
		choices = b.autocompleteRemoveIDs(i)
	}
	if choices == nil {
		return
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		b.logger.Warn("autocomplete respond failed", slog.Any("err", err))
	}
}

func (b *Bot) handleApplicationCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "scan" || len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	switch sub.Name {
	case "add":
		b.handleAddCommand(s, i, sub)
	case "remove":
		b.handleRemoveCommand(s, i, sub)
	case "list":
		b.handleListCommand(s, i, sub)
	}
}

// deactivateScan cancels a scan and recalculates its campground's
// polling_jobs.active_scan_count, the application-level aggregator spec §2
// allows in place of a database trigger.
func (b *Bot) deactivateScan(ctx context.Context, id int64, userID string) error {
	scans, err := b.store.ListUserActiveScans(ctx, userID)
	if err != nil {
		return err
	}
	var provider, campgroundID string
	for _, sc := range scans {
		if sc.ID == id {
			provider, campgroundID = sc.Provider, sc.CampgroundID
			break
		}
	}
	if err := b.store.DeactivateScan(ctx, id, userID); err != nil {
		return err
	}
	if campgroundID == "" {
		return nil
	}
	if err := b.store.RecalculatePollingJob(ctx, provider, campgroundID, b.defaultPollFrequencyMin); err != nil {
		b.logger.Warn("recalculate polling job failed", "err", err)
	}
	return nil
}

func findFocusedOption(opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range opts {
		if o.Focused {
			return o
		}
	}
	return nil
}
