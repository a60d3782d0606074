package chain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedMessage marks a message the contract (or this client) could not parse.
	ErrMalformedMessage = errors.New("malformed contract message")
	// ErrNoContractAddress is returned when an instantiate succeeded without
	// reporting the new contract address.
	ErrNoContractAddress = errors.New("contract address missing from instantiate logs")
	// ErrTxTimeout is returned when a broadcast tx is not found before the confirm timeout.
	ErrTxTimeout = errors.New("transaction not confirmed in time")
)

// resultsPendingPrefix is how the voting contract reports that results are not decided yet.
const resultsPendingPrefix = "Generic error"

// ContractError is an error reported by the chain for a contract query.
type ContractError struct {
	Status  int
	Message string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract error: %s", e.Message)
}

func (e *ContractError) Is(target error) bool {
	return target == ErrMalformedMessage && isParseFailure(e.Message)
}

// TxError is a transaction that was rejected or executed with a non-zero code.
type TxError struct {
	TxHash    string
	Code      uint32
	Codespace string
	Log       string
}

func (e *TxError) Error() string {
	if e.TxHash == "" {
		return fmt.Sprintf("tx failed with code %d (%s): %s", e.Code, e.Codespace, e.Log)
	}
	return fmt.Sprintf("tx %s failed with code %d (%s): %s", e.TxHash, e.Code, e.Codespace, e.Log)
}

func (e *TxError) Is(target error) bool {
	return target == ErrMalformedMessage && isParseFailure(e.Log)
}

// IsResultsPending reports whether err is the contract saying that its
// results are not available yet.
func IsResultsPending(err error) bool {
	var ce *ContractError
	if !errors.As(err, &ce) {
		return false
	}
	return strings.HasPrefix(ce.Message, resultsPendingPrefix)
}

func isParseFailure(msg string) bool {
	for _, s := range []string{"Error parsing into type", "Invalid type", "unknown variant", "missing field"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
