package game

import (
	"fmt"
	"time"
)

var crewClues = []string{
	"Interesting",
	"Common",
	"Well known",
	"Normal",
	"Typical",
	"Obvious",
	"Familiar",
	"Popular",
	"Classic",
	"Simple",
	"Everyday",
	"Basic",
	"Frequent",
	"Usual",
	"Regular",
}

var impostorClues = []string{
	"Hmm...",
	"Curious",
	"Thinking...",
	"Tricky",
	"Complex",
	"Odd",
	"Unique",
	"Special",
	"Mysterious",
	"Abstract",
}

var botNames = []string{
	"RoBot_X",
	"CyberBot",
	"NeonBot",
	"PixelBot",
	"GlitchBot",
	"ShadowBot",
	"TurboBot",
	"ZenBot",
	"NovaBot",
	"VortexBot",
}

// BotVocabulary returns the phrase list a bot draws from.
func BotVocabulary(isImpostor bool) []string {
	if isImpostor {
		return impostorClues
	}
	return crewClues
}

// BotClue picks a filler clue. The secret word is never consulted.
func BotClue(rng Rand, isImpostor bool) string {
	clue, _ := pick(rng, BotVocabulary(isImpostor))
	return clue
}

// BotVoteTarget picks whom a bot votes for among active participants other
// than itself. Impostor bots avoid fellow impostors when they can.
func BotVoteTarget(rng Rand, bot Participant, participants []Participant) (Participant, bool) {
	eligible := make([]Participant, 0, len(participants))
	for _, p := range ActiveParticipants(participants) {
		if p.ID == bot.ID {
			continue
		}
		eligible = append(eligible, p)
	}
	if bot.IsImpostor {
		crew := make([]Participant, 0, len(eligible))
		for _, p := range eligible {
			if !p.IsImpostor {
				crew = append(crew, p)
			}
		}
		if len(crew) > 0 {
			eligible = crew
		}
	}
	return pick(rng, eligible)
}

// BotDelay returns a uniform delay in [min, max] at millisecond resolution.
func BotDelay(rng Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := int((max - min) / time.Millisecond)
	return min + time.Duration(rng.IntN(span+1))*time.Millisecond
}

// BotName picks an unused name from the bot roster, falling back to a
// numbered name once the roster is exhausted.
func BotName(rng Rand, participants []Participant) string {
	used := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		if p.IsBot {
			used[p.Name] = struct{}{}
		}
	}
	available := make([]string, 0, len(botNames))
	for _, name := range botNames {
		if _, taken := used[name]; !taken {
			available = append(available, name)
		}
	}
	if name, ok := pick(rng, available); ok {
		return name
	}
	return fmt.Sprintf("Bot_%d", rng.IntN(1000))
}
