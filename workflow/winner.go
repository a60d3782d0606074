package workflow

import (
	"strconv"

	"secret-evoting/models"
)

// Outcome classifies the result of a finished vote.
type Outcome int

const (
	NoWinner Outcome = iota
	Tie
	Won
)

// Winner is the outcome of a snapshot's results.
type Winner struct {
	Outcome   Outcome
	Candidate models.Candidate
	Votes     uint64
}

// VotingWinner scans the results once. A strictly greater count takes the
// lead and clears the tie flag; an equal count sets it, so a tie among the
// leaders is caught wherever they appear in the list.
func VotingWinner(snap *models.Snapshot) Winner {
	var (
		found bool
		tie   bool
		best  models.CandidateResult
	)
	if snap == nil {
		return Winner{Outcome: NoWinner}
	}
	for _, r := range snap.Results {
		switch {
		case !found || r.Votes > best.Votes:
			best, found, tie = r, true, false
		case r.Votes == best.Votes:
			tie = true
		}
	}

	if !found || best.Votes == 0 {
		return Winner{Outcome: NoWinner}
	}
	if tie {
		return Winner{Outcome: Tie, Votes: best.Votes}
	}
	c, ok := snap.Candidate(best.ID)
	if !ok {
		c = models.Candidate{ID: best.ID, Name: "#" + strconv.Itoa(best.ID)}
	}
	return Winner{Outcome: Won, Candidate: c, Votes: best.Votes}
}

func (w Winner) String() string {
	switch w.Outcome {
	case Tie:
		return "No winner, it is a tie"
	case Won:
		return "Winner: " + w.Candidate.Name
	default:
		return "No winner"
	}
}
