package workflow

import (
	"time"

	"secret-evoting/models"
)

// Event is an input to Reduce: a user intent, a command outcome or an
// external notification.
type Event interface {
	eventName() string
}

// timed events carry the time they happened at. The Runner stamps them when
// the dispatcher left it zero.
type timed interface {
	Event
	at(time.Time) Event
}

// WalletUpdated reports a new wallet session. Contracts is the chain access
// bound to it and is nil unless the session is connected.
type WalletUpdated struct {
	Session   models.WalletSession
	Contracts Contracts
}

type SearchTextChanged struct {
	Text string
}

// SearchRequested starts a search for Address, or for the current search
// text when Address is empty.
type SearchRequested struct {
	Address string
}

type RefreshRequested struct{}

type ReturnRequested struct{}

type SnapshotLoaded struct {
	Seq      uint64
	Ref      models.ContractRef
	Wallet   string
	Snapshot *models.Snapshot
}

type SnapshotFailed struct {
	Seq uint64
	Err error
}

type VoteRequested struct {
	CandidateID int
	Now         time.Time
}

type VoteSucceeded struct {
	Wallet   string
	Contract string
	Result   *models.TxResult
}

type VoteFailed struct {
	Err error
}

// DraftEdited changes the draft fields that are set. CloseTime is the
// time of day as typed, e.g. "14:30".
type DraftEdited struct {
	Title      *string
	Candidates []string
	Voters     []string
	CloseDate  *time.Time
	CloseTime  *string
}

type CreateRequested struct {
	Now time.Time
}

type CreateSucceeded struct {
	Address string
	Result  *models.TxResult
	Now     time.Time
}

type CreateFailed struct {
	Err error
}

type AlertExpired struct {
	ID uint64
}

type AlertDismissed struct{}

func (WalletUpdated) eventName() string     { return "wallet_updated" }
func (SearchTextChanged) eventName() string { return "search_text_changed" }
func (SearchRequested) eventName() string   { return "search_requested" }
func (RefreshRequested) eventName() string  { return "refresh_requested" }
func (ReturnRequested) eventName() string   { return "return_requested" }
func (SnapshotLoaded) eventName() string    { return "snapshot_loaded" }
func (SnapshotFailed) eventName() string    { return "snapshot_failed" }
func (VoteRequested) eventName() string     { return "vote_requested" }
func (VoteSucceeded) eventName() string     { return "vote_succeeded" }
func (VoteFailed) eventName() string        { return "vote_failed" }
func (DraftEdited) eventName() string       { return "draft_edited" }
func (CreateRequested) eventName() string   { return "create_requested" }
func (CreateSucceeded) eventName() string   { return "create_succeeded" }
func (CreateFailed) eventName() string      { return "create_failed" }
func (AlertExpired) eventName() string      { return "alert_expired" }
func (AlertDismissed) eventName() string    { return "alert_dismissed" }

func (e VoteRequested) at(t time.Time) Event {
	if e.Now.IsZero() {
		e.Now = t
	}
	return e
}

func (e CreateRequested) at(t time.Time) Event {
	if e.Now.IsZero() {
		e.Now = t
	}
	return e
}

func (e CreateSucceeded) at(t time.Time) Event {
	if e.Now.IsZero() {
		e.Now = t
	}
	return e
}

// EventName returns the name events are logged and counted under.
func EventName(e Event) string {
	return e.eventName()
}
