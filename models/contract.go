package models

import "time"

// ContractRef identifies one deployed voting contract instance.
type ContractRef struct {
	Address  string `json:"address"`
	CodeHash string `json:"code_hash"`
}

type Candidate struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type CandidateResult struct {
	ID    int    `json:"id"`
	Votes uint64 `json:"votes"`
}

// Snapshot is a point-in-time read of one voting contract. It is rebuilt as a
// whole on every search or refresh and never patched afterwards, except for
// AlreadyVoted after a successful vote.
type Snapshot struct {
	Name         string            `json:"name"`
	Candidates   []Candidate       `json:"candidates"`
	VotersCount  uint64            `json:"voters_count"`
	CloseTime    time.Time         `json:"close_time"`
	Results      []CandidateResult `json:"results"`
	AlreadyVoted bool              `json:"already_voted"`
	FetchedAt    time.Time         `json:"fetched_at"`
}

// VotingOpen reports whether the close time is still ahead of now.
func (s *Snapshot) VotingOpen(now time.Time) bool {
	return s.CloseTime.After(now)
}

// InProgress mirrors what the page shows as "In progress": the contract has
// not closed yet or it has no published results.
func (s *Snapshot) InProgress(now time.Time) bool {
	return s.VotingOpen(now) || len(s.Results) == 0
}

func (s *Snapshot) Candidate(id int) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

func (s *Snapshot) VotesFor(id int) (uint64, bool) {
	for _, r := range s.Results {
		if r.ID == id {
			return r.Votes, true
		}
	}
	return 0, false
}
