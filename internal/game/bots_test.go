package game

import (
	"testing"
	"time"
)

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func TestBotClueUsesRoleVocabulary(t *testing.T) {
	rng := NewSeededRand(3)
	for i := 0; i < 50; i++ {
		if clue := BotClue(rng, false); !contains(crewClues, clue) {
			t.Fatalf("crew clue %q outside crew vocabulary", clue)
		}
		if clue := BotClue(rng, true); !contains(impostorClues, clue) {
			t.Fatalf("impostor clue %q outside impostor vocabulary", clue)
		}
	}
}

func TestBotVoteTargetNeverSelf(t *testing.T) {
	snap := fourPlayerSnapshot("p-c")
	bot := mustParticipant(t, snap, "p-a")
	rng := NewSeededRand(11)
	for i := 0; i < 50; i++ {
		target, ok := BotVoteTarget(rng, bot, snap.Participants)
		if !ok {
			t.Fatalf("expected a target")
		}
		if target.ID == bot.ID {
			t.Fatalf("bot voted for itself")
		}
	}
}

func TestImpostorBotAvoidsAllies(t *testing.T) {
	snap := fourPlayerSnapshot("p-c")
	for i := range snap.Participants {
		if snap.Participants[i].ID == "p-a" {
			snap.Participants[i].IsImpostor = true
		}
	}
	bot := mustParticipant(t, snap, "p-a")
	rng := NewSeededRand(5)
	for i := 0; i < 50; i++ {
		target, _ := BotVoteTarget(rng, bot, snap.Participants)
		if target.IsImpostor {
			t.Fatalf("impostor bot voted for ally %s", target.ID)
		}
	}
}

func TestImpostorBotFallsBackWhenOnlyAlliesRemain(t *testing.T) {
	participants := []Participant{
		{ID: "p-a", Ready: true, IsImpostor: true, IsBot: true},
		{ID: "p-b", Ready: true, IsImpostor: true},
		{ID: "p-c", Ready: true, Eliminated: true},
	}
	target, ok := BotVoteTarget(&seqRand{values: []int{0}}, participants[0], participants)
	if !ok || target.ID != "p-b" {
		t.Fatalf("expected fallback to ally p-b, got %#v", target)
	}
	if _, ok := BotVoteTarget(&seqRand{}, participants[0], participants[:1]); ok {
		t.Fatalf("expected no target when alone")
	}
}

func TestBotDelayWithinBounds(t *testing.T) {
	rng := NewSeededRand(9)
	for i := 0; i < 100; i++ {
		delay := BotDelay(rng, time.Second, 3*time.Second)
		if delay < time.Second || delay > 3*time.Second {
			t.Fatalf("delay %s out of bounds", delay)
		}
	}
	if delay := BotDelay(rng, 2*time.Second, time.Second); delay != 2*time.Second {
		t.Fatalf("expected min when range is inverted, got %s", delay)
	}
}

func TestBotNameSkipsUsedNames(t *testing.T) {
	participants := make([]Participant, 0, len(botNames))
	for _, name := range botNames[1:] {
		participants = append(participants, Participant{Name: name, IsBot: true})
	}
	if name := BotName(&seqRand{values: []int{4}}, participants); name != botNames[0] {
		t.Fatalf("expected only free name %q, got %q", botNames[0], name)
	}
	participants = append(participants, Participant{Name: botNames[0], IsBot: true})
	if name := BotName(&seqRand{values: []int{42}}, participants); name != "Bot_42" {
		t.Fatalf("expected numbered fallback, got %q", name)
	}
}
