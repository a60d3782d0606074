package workflow

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"secret-evoting/models"
)

// Reduce applies ev to s and returns the new state and the commands to run.
// It never performs I/O and never mutates values reachable from s.
func Reduce(s State, ev Event) (State, []Command) {
	switch e := ev.(type) {
	case WalletUpdated:
		s.Wallet = e.Session
		if e.Session.Connected() && s.Phase == PhaseInteract && s.Contract != nil {
			return startFetch(s, *s.Contract)
		}
		return s, nil

	case SearchTextChanged:
		s.SearchText = e.Text
		return s, nil

	case SearchRequested:
		addr := strings.TrimSpace(e.Address)
		if addr == "" {
			addr = strings.TrimSpace(s.SearchText)
		}
		s.SearchText = addr
		if !s.Wallet.Connected() {
			return showAlert(s, titleWalletError, textWalletError)
		}
		if addr == "" {
			return showAlert(s, titleContractError, textContractError)
		}
		return startFetch(s, models.ContractRef{Address: addr, CodeHash: s.Settings.CodeHash})

	case RefreshRequested:
		if s.Phase != PhaseInteract || s.Contract == nil {
			return s, nil
		}
		if !s.Wallet.Connected() {
			return showAlert(s, titleWalletError, textWalletError)
		}
		return startFetch(s, *s.Contract)

	case SnapshotLoaded:
		if e.Seq != s.SearchSeq || !s.Loading {
			return s, nil
		}
		ref := e.Ref
		s.Phase = PhaseInteract
		s.Contract = &ref
		s.Snapshot = e.Snapshot
		if e.Snapshot != nil && !e.Snapshot.AlreadyVoted && s.HasVoted(e.Wallet, ref.Address) {
			snap := *e.Snapshot
			snap.AlreadyVoted = true
			s.Snapshot = &snap
		}
		s.SearchText = ref.Address
		s.Loading = false
		return s, nil

	case SnapshotFailed:
		if e.Seq != s.SearchSeq || !s.Loading {
			return s, nil
		}
		s.Loading = false
		return showAlert(s, titleContractError, textContractError)

	case ReturnRequested:
		s.Phase = PhaseSearch
		s.SearchText = ""
		s.Loading = false
		s.SearchSeq++
		s.Contract = nil
		s.Snapshot = nil
		s.Voting = false
		return s, []Command{CancelFetch{}}

	case VoteRequested:
		if err := CanVote(s, e.CandidateID, e.Now); err != nil {
			if errors.Is(err, ErrWalletNotConnected) {
				return showAlert(s, titleWalletError, textWalletError)
			}
			return s, nil
		}
		s.Voting = true
		return s, []Command{SubmitVote{
			Wallet:      s.Wallet.Address,
			Contract:    s.Contract.Address,
			CandidateID: e.CandidateID,
		}}

	case VoteSucceeded:
		s.Voting = false
		voted := make(map[string]bool, len(s.Voted)+1)
		for k := range s.Voted {
			voted[k] = true
		}
		voted[votedKey(e.Wallet, e.Contract)] = true
		s.Voted = voted
		cmds := []Command{PersistReceipt{Wallet: e.Wallet, Contract: e.Contract}}
		if s.Snapshot != nil && s.Contract != nil && s.Contract.Address == e.Contract && s.Wallet.Address == e.Wallet {
			snap := *s.Snapshot
			snap.AlreadyVoted = true
			s.Snapshot = &snap
		}
		return s, cmds

	case VoteFailed:
		s.Voting = false
		return showAlert(s, titleContractError, textContractError)

	case DraftEdited:
		s.Draft = applyDraftEdit(s.Draft, e)
		return s, nil

	case CreateRequested:
		if !s.Wallet.Connected() {
			return showAlert(s, titleWalletError, textWalletError)
		}
		if s.Creating {
			return s, nil
		}
		if err := ValidateDraft(s.Draft, s.Settings.AddressPrefix, e.Now); err != nil {
			return showAlert(s, titleInvalidDraft, err.Error())
		}
		s.Creating = true
		s.CreatedAddress = ""
		return s, []Command{Instantiate{
			Msg:   BuildInitMsg(s.Draft),
			Label: InstantiateLabel(s.Draft.Title, e.Now),
		}}

	case CreateSucceeded:
		s.Creating = false
		s.CreatedAddress = e.Address
		s.Draft = models.NewCreationDraft(e.Now)
		return s, nil

	case CreateFailed:
		s.Creating = false
		title, content := createFailureAlert(e.Err)
		return showAlert(s, title, content)

	case AlertExpired:
		if s.Alert != nil && s.Alert.ID == e.ID {
			s.Alert = nil
		}
		return s, nil

	case AlertDismissed:
		s.Alert = nil
		return s, nil
	}
	return s, nil
}

// CanVote reports why a vote for candidateID cannot be sent right now, or
// nil when it can.
func CanVote(s State, candidateID int, now time.Time) error {
	if !s.Wallet.Connected() {
		return ErrWalletNotConnected
	}
	if s.Phase != PhaseInteract || s.Snapshot == nil || s.Contract == nil {
		return ErrVoteUnavailable
	}
	if s.Voting || s.Snapshot.AlreadyVoted || !s.Snapshot.VotingOpen(now) {
		return ErrVoteUnavailable
	}
	if _, ok := s.Snapshot.Candidate(candidateID); !ok {
		return ErrUnknownCandidate
	}
	return nil
}

// startFetch replaces any search in flight with a fetch of ref.
func startFetch(s State, ref models.ContractRef) (State, []Command) {
	s.SearchSeq++
	s.Loading = true
	return s, []Command{FetchSnapshot{Seq: s.SearchSeq, Ref: ref, Wallet: s.Wallet.Address}}
}

func showAlert(s State, title, content string) (State, []Command) {
	s.AlertSeq++
	s.Alert = &Alert{ID: s.AlertSeq, Title: title, Content: content}
	return s, []Command{ExpireAlert{ID: s.AlertSeq}}
}

func applyDraftEdit(d models.CreationDraft, e DraftEdited) models.CreationDraft {
	if e.Title != nil {
		d.Title = *e.Title
	}
	if e.Candidates != nil {
		d.Candidates = uniqueNonBlank(e.Candidates)
	}
	if e.Voters != nil {
		d.Voters = uniqueNonBlank(e.Voters)
	}
	if e.CloseDate != nil {
		d.CloseDate = StartOfDay(*e.CloseDate)
	}
	if e.CloseTime != nil {
		if secs, ok := ParseCloseTimeOffset(*e.CloseTime); ok {
			d.CloseTimeOffset = secs
		}
	}
	return d
}
