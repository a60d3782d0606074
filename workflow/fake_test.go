package workflow

import (
	"context"
	"sync"
	"time"

	"secret-evoting/chain"
	"secret-evoting/models"
)

// fakeContracts serves one voting contract from memory.
type fakeContracts struct {
	mu sync.Mutex

	wallet     string
	name       string
	candidates []models.Candidate
	voters     uint64
	closeTime  time.Time
	results    []models.CandidateResult
	resultsErr error
	queryErr   error
	// delay holds every query back, per contract address.
	delay map[string]time.Duration

	voteErr     error
	voteCode    uint32
	votes       []int
	resultCalls int

	instantiateAddr string
	instantiateErr  error
	instantiated    []models.InitMsg
	labels          []string
}

func newFakeContracts(closeTime time.Time) *fakeContracts {
	return &fakeContracts{
		wallet: "secret1wallet",
		name:   "Board election",
		candidates: []models.Candidate{
			{ID: 0, Name: "Alice"},
			{ID: 1, Name: "Bob"},
		},
		voters:    3,
		closeTime: closeTime,
		delay:     map[string]time.Duration{},
	}
}

func (f *fakeContracts) Address() string { return f.wallet }

func (f *fakeContracts) wait(ctx context.Context, contract string) error {
	f.mu.Lock()
	d := f.delay[contract]
	err := f.queryErr
	f.mu.Unlock()
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeContracts) Name(ctx context.Context, contract string) (string, error) {
	if err := f.wait(ctx, contract); err != nil {
		return "", err
	}
	return f.name + " " + contract, nil
}

func (f *fakeContracts) Candidates(ctx context.Context, contract string) ([]models.Candidate, error) {
	if err := f.wait(ctx, contract); err != nil {
		return nil, err
	}
	return f.candidates, nil
}

func (f *fakeContracts) VotersCount(ctx context.Context, contract string) (uint64, error) {
	if err := f.wait(ctx, contract); err != nil {
		return 0, err
	}
	return f.voters, nil
}

func (f *fakeContracts) CloseTime(ctx context.Context, contract string) (time.Time, error) {
	if err := f.wait(ctx, contract); err != nil {
		return time.Time{}, err
	}
	return f.closeTime, nil
}

func (f *fakeContracts) Results(ctx context.Context, contract string) ([]models.CandidateResult, error) {
	f.mu.Lock()
	f.resultCalls++
	f.mu.Unlock()
	if err := f.wait(ctx, contract); err != nil {
		return nil, err
	}
	if f.resultsErr != nil {
		return nil, f.resultsErr
	}
	return f.results, nil
}

func (f *fakeContracts) SubmitVote(_ context.Context, _ string, candidateID int) (*models.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes = append(f.votes, candidateID)
	if f.voteErr != nil {
		return nil, f.voteErr
	}
	return &models.TxResult{TxHash: "VOTE", Code: f.voteCode}, nil
}

func (f *fakeContracts) Instantiate(_ context.Context, msg models.InitMsg, label string) (string, *models.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instantiated = append(f.instantiated, msg)
	f.labels = append(f.labels, label)
	if f.instantiateErr != nil {
		return "", nil, f.instantiateErr
	}
	return f.instantiateAddr, &models.TxResult{TxHash: "INIT"}, nil
}

func (f *fakeContracts) voteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.votes)
}

func (f *fakeContracts) resultCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultCalls
}

// memoryReceipts is a Receipts backed by a map.
type memoryReceipts struct {
	mu    sync.Mutex
	marks map[string]bool
	err   error
	// markDelay holds MarkVoted back before the write lands.
	markDelay time.Duration
}

func newMemoryReceipts() *memoryReceipts {
	return &memoryReceipts{marks: map[string]bool{}}
}

func (m *memoryReceipts) HasVoted(_ context.Context, wallet, contract string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.marks[wallet+"_"+contract], nil
}

func (m *memoryReceipts) MarkVoted(_ context.Context, wallet, contract string) error {
	if m.markDelay > 0 {
		time.Sleep(m.markDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[wallet+"_"+contract] = true
	return nil
}

func pendingResultsErr() error {
	return &chain.ContractError{Message: "Generic error: voting has not finished"}
}
