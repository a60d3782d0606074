package chain

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"secret-evoting/models"
)

// Gas limits for the voting contract. The chain charges for the limit, not
// for what is used.
const (
	VoteGasLimit        uint64 = 1_000_000
	InstantiateGasLimit uint64 = 2_000_000
)

// ContractClient is the part of Client the Adapter depends on.
type ContractClient interface {
	Address() string
	QueryContract(ctx context.Context, req QueryRequest) (json.RawMessage, error)
	ExecuteContract(ctx context.Context, req ExecuteRequest) (*models.TxResult, error)
	InstantiateContract(ctx context.Context, req InstantiateRequest) (*models.TxResult, error)
}

// Adapter speaks the voting contract's message set on top of a ContractClient.
// All calls use the one code hash the voting contract is published under.
type Adapter struct {
	client   ContractClient
	codeID   uint64
	codeHash string
}

func NewAdapter(client ContractClient, codeID uint64, codeHash string) *Adapter {
	return &Adapter{client: client, codeID: codeID, codeHash: codeHash}
}

// Address returns the wallet address the adapter signs for.
func (a *Adapter) Address() string {
	return a.client.Address()
}

func (a *Adapter) CodeHash() string {
	return a.codeHash
}

// Query runs one of the contract's parameterless queries and decodes the answer into out.
func (a *Adapter) Query(ctx context.Context, contract, kind string, out interface{}) error {
	raw, err := a.client.QueryContract(ctx, QueryRequest{
		ContractAddress: contract,
		CodeHash:        a.codeHash,
		Query:           models.QueryMsg(kind),
	})
	if err != nil {
		return err
	}
	// The node hands some contract failures back as a bare JSON string.
	var s string
	if json.Unmarshal(raw, &s) == nil && isBareError(s, out) {
		return &ContractError{Message: s}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(ErrMalformedMessage, "%s answer: %v", kind, err)
	}
	return nil
}

// isBareError reports whether s, a string answer to a query decoded into
// out, is an error text rather than a value. Counts come back as numeric
// strings. String answers only count as errors when they read like one.
func isBareError(s string, out interface{}) bool {
	if _, isString := out.(*string); isString {
		return strings.HasPrefix(s, resultsPendingPrefix) || isParseFailure(s)
	}
	_, numErr := strconv.ParseUint(s, 10, 64)
	return numErr != nil
}

// Execute sends an execute message to contract and waits for its result.
func (a *Adapter) Execute(ctx context.Context, contract string, msg models.ExecuteMsg, gasLimit uint64) (*models.TxResult, error) {
	return a.client.ExecuteContract(ctx, ExecuteRequest{
		ContractAddress: contract,
		CodeHash:        a.codeHash,
		Msg:             msg,
		GasLimit:        gasLimit,
	})
}

func (a *Adapter) Name(ctx context.Context, contract string) (string, error) {
	var name string
	if err := a.Query(ctx, contract, models.QueryGetName, &name); err != nil {
		return "", err
	}
	return name, nil
}

func (a *Adapter) Candidates(ctx context.Context, contract string) ([]models.Candidate, error) {
	var list []models.Candidate
	if err := a.Query(ctx, contract, models.QueryGetCandidateList, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (a *Adapter) VotersCount(ctx context.Context, contract string) (uint64, error) {
	var n flexUint
	if err := a.Query(ctx, contract, models.QueryGetVotersCount, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// CloseTime returns the contract's close time. The contract stores whole
// seconds since the epoch.
func (a *Adapter) CloseTime(ctx context.Context, contract string) (time.Time, error) {
	var secs flexUint
	if err := a.Query(ctx, contract, models.QueryGetCloseTime, &secs); err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}

// Results returns the per candidate tallies. Use IsResultsPending on the
// error to tell an undecided contract from a failure.
func (a *Adapter) Results(ctx context.Context, contract string) ([]models.CandidateResult, error) {
	var results []models.CandidateResult
	if err := a.Query(ctx, contract, models.QueryGetResults, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// SubmitVote casts the wallet's vote for candidateID.
func (a *Adapter) SubmitVote(ctx context.Context, contract string, candidateID int) (*models.TxResult, error) {
	msg := models.ExecuteMsg{SubmitVote: &models.SubmitVote{CandidateID: candidateID}}
	return a.Execute(ctx, contract, msg, VoteGasLimit)
}

// Instantiate creates a new voting contract and returns its address.
func (a *Adapter) Instantiate(ctx context.Context, msg models.InitMsg, label string) (string, *models.TxResult, error) {
	res, err := a.client.InstantiateContract(ctx, InstantiateRequest{
		CodeID:   a.codeID,
		CodeHash: a.codeHash,
		InitMsg:  msg,
		Label:    label,
		GasLimit: InstantiateGasLimit,
	})
	if err != nil {
		return "", res, err
	}
	addr, ok := res.Find("instantiate", "contract_address")
	if !ok {
		// Older nodes report it on the message event.
		addr, ok = res.Find("message", "contract_address")
	}
	if !ok || addr == "" {
		return "", res, errors.Wrapf(ErrNoContractAddress, "tx %s", res.TxHash)
	}
	return addr, res, nil
}

// flexUint accepts both JSON numbers and the quoted decimal strings used for
// 64-bit integers.
type flexUint uint64

func (f *flexUint) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexUint(n)
	return nil
}
