// Package workflow is the search, interact, vote and create state machine of
// the e-voting client. Transitions are computed by Reduce, a pure function;
// the Runner executes the commands Reduce emits and feeds their outcome back
// as events.
package workflow

import (
	"fmt"
	"time"

	"secret-evoting/models"
)

// Phase is the page the workflow is on.
type Phase int

const (
	PhaseSearch Phase = iota
	PhaseInteract
)

func (p Phase) String() string {
	switch p {
	case PhaseSearch:
		return "search"
	case PhaseInteract:
		return "interact"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "search":
		*p = PhaseSearch
	case "interact":
		*p = PhaseInteract
	default:
		return fmt.Errorf("unknown phase %q", b)
	}
	return nil
}

// Alert is a user facing notification. It expires on its own.
type Alert struct {
	ID      uint64 `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Settings are the fixed parameters the reducer needs.
type Settings struct {
	CodeHash      string `json:"code_hash"`
	AddressPrefix string `json:"address_prefix"`
}

// State is the whole observable state of the workflow.
type State struct {
	Settings Settings             `json:"settings"`
	Phase    Phase                `json:"phase"`
	Wallet   models.WalletSession `json:"wallet"`

	SearchText string `json:"search_text"`
	Loading    bool   `json:"loading"`
	// SearchSeq identifies the newest search. Results of older ones are dropped.
	SearchSeq uint64 `json:"search_seq"`

	Contract *models.ContractRef `json:"contract,omitempty"`
	Snapshot *models.Snapshot    `json:"snapshot,omitempty"`
	Voting   bool                `json:"voting"`
	// Voted holds the votes that succeeded in this process, keyed like
	// the receipt store. It covers snapshots read before the receipt was
	// written.
	Voted map[string]bool `json:"-"`

	Draft          models.CreationDraft `json:"draft"`
	Creating       bool                 `json:"creating"`
	CreatedAddress string               `json:"created_address,omitempty"`

	Alert    *Alert `json:"alert,omitempty"`
	AlertSeq uint64 `json:"-"`
}

func votedKey(wallet, contract string) string {
	return wallet + "_" + contract
}

// HasVoted reports whether wallet voted on contract in this process.
func (s State) HasVoted(wallet, contract string) bool {
	return s.Voted[votedKey(wallet, contract)]
}

// Initial returns the state the client starts in: searching, with the
// wallet still connecting.
func Initial(settings Settings, now time.Time) State {
	return State{
		Settings: settings,
		Phase:    PhaseSearch,
		Wallet:   models.WalletSession{Status: models.WalletConnecting},
		Draft:    models.NewCreationDraft(now),
	}
}
