package workflow

import (
	"github.com/pkg/errors"

	"secret-evoting/chain"
)

var (
	// ErrVoteUnavailable means the vote button is disabled: voting closed,
	// already voted, no contract loaded or a vote in flight.
	ErrVoteUnavailable = errors.New("vote unavailable")
	// ErrUnknownCandidate is a vote for an id the contract does not list.
	ErrUnknownCandidate = errors.New("unknown candidate")
	// ErrWalletNotConnected blocks every contract action.
	ErrWalletNotConnected = errors.New("wallet not connected")
	// ErrStopped is returned by Dispatch once the Runner is stopped.
	ErrStopped = errors.New("workflow runner stopped")
)

// Alert texts shown to the user.
const (
	titleContractError = "Smart contract error"
	textContractError  = "Invalid smart contract address or transmission error"
	titleJSONError     = "JSON parsing error"
	textJSONError      = "Invalid smart contract instantiation message"
	titleWalletError   = "Wallet error"
	textWalletError    = "Wallet is not connected"
	titleInvalidDraft  = "Invalid draft"
)

func createFailureAlert(err error) (string, string) {
	if errors.Is(err, chain.ErrMalformedMessage) {
		return titleJSONError, textJSONError
	}
	return titleContractError, textContractError
}
