package workflow

import (
	"time"

	"secret-evoting/models"
)

// WalletStatusText is the wallet line of the page.
func WalletStatusText(status models.WalletStatus) string {
	switch status {
	case models.WalletConnecting:
		return "Connecting to wallet..."
	case models.WalletConnected:
		return "Wallet connected"
	default:
		return "Error connecting wallet"
	}
}

// VotingStateText is "In progress" until the contract is closed with
// results, then the winner line.
func VotingStateText(snap *models.Snapshot, now time.Time) string {
	if snap == nil || snap.InProgress(now) {
		return "In progress"
	}
	return "Finished - " + VotingWinner(snap).String()
}

// VoteButtonLabel is the label of each candidate's vote button.
func VoteButtonLabel(snap *models.Snapshot, now time.Time) string {
	switch {
	case snap == nil || !snap.InProgress(now):
		return "Voting finished"
	case snap.AlreadyVoted:
		return "Already voted"
	default:
		return "Vote"
	}
}

// WalletView is the wallet session as shown to the user.
type WalletView struct {
	models.WalletSession
	Text string `json:"text"`
}

// CandidateView is one row of the candidate table. Votes is set once the
// vote has finished.
type CandidateView struct {
	models.Candidate
	Votes   *uint64 `json:"votes,omitempty"`
	Label   string  `json:"label,omitempty"`
	CanVote bool    `json:"can_vote"`
}

// ContractView is the interact page.
type ContractView struct {
	Address     string          `json:"address"`
	Name        string          `json:"name"`
	State       string          `json:"state"`
	InProgress  bool            `json:"in_progress"`
	CloseTime   time.Time       `json:"close_time"`
	VotersCount uint64          `json:"voters_count"`
	Candidates  []CandidateView `json:"candidates"`
	LastRefresh time.Time       `json:"last_refresh"`
}

// DraftView is the create form.
type DraftView struct {
	models.CreationDraft
	CloseTimeText string `json:"close_time"`
}

// View is what a presentation layer renders.
type View struct {
	Phase          Phase         `json:"phase"`
	Wallet         WalletView    `json:"wallet"`
	SearchText     string        `json:"search_text"`
	Loading        bool          `json:"loading"`
	Contract       *ContractView `json:"contract,omitempty"`
	Voting         bool          `json:"voting"`
	Draft          DraftView     `json:"draft"`
	Creating       bool          `json:"creating"`
	CreatedAddress string        `json:"created_address,omitempty"`
	Alert          *Alert        `json:"alert,omitempty"`
}

// NewView renders s as of now.
func NewView(s State, now time.Time) View {
	v := View{
		Phase:          s.Phase,
		Wallet:         WalletView{WalletSession: s.Wallet, Text: WalletStatusText(s.Wallet.Status)},
		SearchText:     s.SearchText,
		Loading:        s.Loading,
		Voting:         s.Voting,
		Draft:          DraftView{CreationDraft: s.Draft, CloseTimeText: FormatCloseTimeOffset(s.Draft.CloseTimeOffset)},
		Creating:       s.Creating,
		CreatedAddress: s.CreatedAddress,
		Alert:          s.Alert,
	}
	if s.Phase != PhaseInteract || s.Snapshot == nil || s.Contract == nil {
		return v
	}

	snap := s.Snapshot
	inProgress := snap.InProgress(now)
	cv := &ContractView{
		Address:     s.Contract.Address,
		Name:        snap.Name,
		State:       VotingStateText(snap, now),
		InProgress:  inProgress,
		CloseTime:   snap.CloseTime,
		VotersCount: snap.VotersCount,
		Candidates:  make([]CandidateView, 0, len(snap.Candidates)),
		LastRefresh: snap.FetchedAt,
	}
	for _, c := range snap.Candidates {
		row := CandidateView{Candidate: c}
		if inProgress {
			row.Label = VoteButtonLabel(snap, now)
			row.CanVote = CanVote(s, c.ID, now) == nil
		} else if votes, ok := snap.VotesFor(c.ID); ok {
			row.Votes = &votes
		}
		cv.Candidates = append(cv.Candidates, row)
	}
	v.Contract = cv
	return v
}
