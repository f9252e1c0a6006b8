// Package nonsense holds the bot's flavor text: over-the-top announcer copy
// in the style of competitive hot-dog-eating-contest introductions,
// grounded on the teacher's internal/nonsense package (same register, same
// joke structure), reworded from the teacher's product-name wordplay to
// plain "scan"/"campsite" language since this repo isn't that product.
package nonsense

import (
	"fmt"
	"math/rand"
	"time"
)

func RandomSillyGreeting(userID string) string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	greetings := []string{
		"For fame to the eye of heaven is the blood of Cain. The child of evil anointed at birth with the oils of hell. <@%s>, I give you the Red Horse of campsite scanning!",
		"There will be a day that is the end. The collapse of time and all that stood within it. A day of nothing. But that day is not today. Today <@%s> burns bright with the desire to scan!",
		"The humble consequence of carbon. The fleeting spray of life turned diamond by the sun. <@%s> will curse and spit and sneer and shout their name at the heavens: I AM THE SHINING ARC OF AVAILABILITY SCANNING!",
		"In their last will and testament there is a codicil memorializing their appreciation for string cheese and all those who serve it. <@%s> is ranked No. 1 in the world of campsite scanning!",
		"<@%s> is a person so dedicated they were put in prison in hell. Hell prison! They survived by chewing seal bones and now they're here to scan!",
		"<@%s> is the eighth archangel. Gideon, the exalted. Six-feet nine inches tall. Seven feet from tip of wing to tip of wing. The kale-eating champion of the world, now the scanning champion!",
		"Immediately following a record-setting performance, <@%s> dropped to one knee and asked camping to marry them. Camping said 'yes.' They are now the premier power couple in all of competitive campsite scanning!",
		"<@%s> has greater muscle mass than two football players and a Canadian but the key to their success is scanning speed. When they scan, their hands are a blur!",
		"<@%s> operates from a platform of power and has zero respect for indecision. Impose your will on your scan or have someone else impose their will on you!",
		"<@%s> lost the confidence of their co-workers when they mixed together all the food on their plate and said 'it's all going to the same place.' Today they are universally acknowledged as the most efficient scanner on the circuit!",
		"<@%s> is the vortex at the center of the vortex. A child of the centuries selected for greatness by the finger of scanning power!",
		"<@%s> has traveled this nation from IHOP, Texas to Waffle House, Tennessee to Poke Bowl, Connecticut. They have learned the common denominator is American scanning exceptionalism!",
	}

	return fmt.Sprintf(greetings[r.Intn(len(greetings))], userID)
}

func RandomSillyHeader() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	headers := []string{
		"You've got a scan!",
		"Scaaaan!",
		"Another day, another scan.",
		"Oh, what a scan!",
		"Scan, scan, hooray!",
		"Look what the scanner dragged in!",
		"S-s-s-s-scan!",
		"ka-scan",
		"Scans ahoy",
		"I can't believe it's not a scan (it is)",
	}

	return headers[r.Intn(len(headers))]
}

// RandomLaunchMessage is posted to the broadcast channel once the bot comes
// online, the teacher's onReady-time announcement.
func RandomLaunchMessage() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	launches := []string{
		"The scanner has awoken. Campsites, you cannot hide forever.",
		"Booting up. Somewhere, a cancelled campsite reservation trembles.",
		"Online again. The hourly call budget resets and the hunt begins anew.",
		"Back from the void. Every polling job is Due until proven otherwise.",
	}

	return launches[r.Intn(len(launches))]
}

func RandomSillyBroadcast(userID string) string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	broadcasts := []string{
		"I came, I saw, I scanned <@%s> a campsite.",
		"If scanning were an olympic sport, <@%s> would be Steven Bradbury since I just found them a campsite.",
		"When you stare into the availability diff, the availability diff stares back. Is what <@%s> is saying right now because I found them a campsite.",
		"These messages are not generated by chatgpt. Neither is the campsite I just found for <@%s>.",
		"<@%s>'s the name, finding them a campsite is the game.",
		"<@%s> is thinking, why am I getting so many notifications? It's because I just successfully scanned for them.",
		"That's one small diff for <@%s>, one giant leap for campsite-kind.",
	}

	return fmt.Sprintf(broadcasts[r.Intn(len(broadcasts))], userID)
}
