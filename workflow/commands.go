package workflow

import "secret-evoting/models"

// Command is a side effect requested by Reduce.
type Command interface {
	commandName() string
}

// FetchSnapshot reads a full snapshot of Ref. It replaces any fetch in flight.
type FetchSnapshot struct {
	Seq    uint64
	Ref    models.ContractRef
	Wallet string
}

// CancelFetch aborts the fetch in flight, if any.
type CancelFetch struct{}

type SubmitVote struct {
	Wallet      string
	Contract    string
	CandidateID int
}

// PersistReceipt stores the vote receipt of Wallet on Contract.
type PersistReceipt struct {
	Wallet   string
	Contract string
}

type Instantiate struct {
	Msg   models.InitMsg
	Label string
}

// ExpireAlert clears alert ID once the show time has passed.
type ExpireAlert struct {
	ID uint64
}

func (FetchSnapshot) commandName() string  { return "fetch_snapshot" }
func (CancelFetch) commandName() string    { return "cancel_fetch" }
func (SubmitVote) commandName() string     { return "submit_vote" }
func (PersistReceipt) commandName() string { return "persist_receipt" }
func (Instantiate) commandName() string    { return "instantiate" }
func (ExpireAlert) commandName() string    { return "expire_alert" }
