package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bwmarrin/discordgo"
)

// Command clear-commands removes campwatch's registered "/scan" slash
// command (and any stale leftovers from earlier iterations) so
// bot.MountHandlers can re-register a clean command set on next startup.
// Run this after changing the command/subcommand shape in internal/bot.
func main() {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		log.Fatal("DISCORD_TOKEN environment variable is required")
	}

	guildID := os.Getenv("GUILD_ID") // Optional - leave empty to clear global commands

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatal("Error creating Discord session: ", err)
	}

	err = session.Open()
	if err != nil {
		log.Fatal("Error opening connection: ", err)
	}
	defer session.Close()

	app, err := session.Application("@me")
	if err != nil {
		log.Fatal("Error getting application info: ", err)
	}

	if guildID != "" {
		fmt.Printf("Clearing commands for guild: %s\n", guildID)
		commands, err := session.ApplicationCommands(app.ID, guildID)
		if err != nil {
			log.Printf("Error fetching guild commands: %v\n", err)
		} else {
			for _, cmd := range commands {
				fmt.Println("guild command:", cmd.Name, cmd.ID)
				if err := session.ApplicationCommandDelete(app.ID, guildID, cmd.ID); err != nil {
					log.Printf("Error deleting guild command %s: %v\n", cmd.Name, err)
				} else {
					fmt.Printf("Deleted guild command: %s\n", cmd.Name)
				}
			}
		}
	}

	fmt.Println("Clearing global commands...")
	commands, err := session.ApplicationCommands(app.ID, "")
	if err != nil {
		log.Printf("Error fetching global commands: %v\n", err)
	} else {
		for _, cmd := range commands {
			fmt.Println("global command:", cmd.Name, cmd.ID)
			if err := session.ApplicationCommandDelete(app.ID, "", cmd.ID); err != nil {
				log.Printf("Error deleting global command %s: %v\n", cmd.Name, err)
			} else {
				fmt.Printf("Deleted global command: %s\n", cmd.Name)
			}
		}
	}

	fmt.Println("Command cleanup complete!")
}
