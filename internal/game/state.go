package game

import (
	"sort"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

// TallyResult is the outcome of counting one round's votes
type TallyResult struct {
	Counts map[string]int
	Target string
	Max    int
	Tied   bool
}

// Tally counts votes by target. Among targets sharing the highest count, the
// one that received its first vote earliest, in vote insertion order, is the
// target.
func Tally(votes []*models.Vote) TallyResult {
	ordered := make([]*models.Vote, len(votes))
	copy(ordered, votes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	result := TallyResult{Counts: make(map[string]int)}
	var seen []string
	for _, v := range ordered {
		if result.Counts[v.TargetID] == 0 {
			seen = append(seen, v.TargetID)
		}
		result.Counts[v.TargetID]++
	}

	leaders := 0
	for _, target := range seen {
		switch count := result.Counts[target]; {
		case count > result.Max:
			result.Max = count
			result.Target = target
			leaders = 1
		case count == result.Max:
			leaders++
		}
	}
	result.Tied = leaders > 1
	return result
}

// Outcome is the room-level decision taken after a round resolves
type Outcome string

const (
	OutcomeContinue     Outcome = "continue"
	OutcomeCrewWins     Outcome = "crew_wins"
	OutcomeImpostorsWin Outcome = "impostors_win"
	OutcomeDraw         Outcome = "draw"
)

// Winner maps a final outcome to the winner recorded on the room
func (o Outcome) Winner() models.Winner {
	switch o {
	case OutcomeCrewWins:
		return models.WinnerCrew
	case OutcomeImpostorsWin:
		return models.WinnerImpostors
	case OutcomeDraw:
		return models.WinnerDraw
	default:
		return models.WinnerUndecided
	}
}

// Decide evaluates the win conditions in order: no impostors left, crew no
// longer outnumbering impostors, round limit reached.
func Decide(aliveImpostors, aliveCrew, roundNumber, maxRounds int) Outcome {
	switch {
	case aliveImpostors == 0:
		return OutcomeCrewWins
	case aliveCrew <= aliveImpostors:
		return OutcomeImpostorsWin
	case roundNumber >= maxRounds:
		return OutcomeDraw
	default:
		return OutcomeContinue
	}
}
