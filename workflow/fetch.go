package workflow

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"secret-evoting/chain"
	"secret-evoting/models"
)

// Contracts is the chain access a connected wallet session provides.
// *chain.Adapter implements it.
type Contracts interface {
	Address() string
	Name(ctx context.Context, contract string) (string, error)
	Candidates(ctx context.Context, contract string) ([]models.Candidate, error)
	VotersCount(ctx context.Context, contract string) (uint64, error)
	CloseTime(ctx context.Context, contract string) (time.Time, error)
	Results(ctx context.Context, contract string) ([]models.CandidateResult, error)
	SubmitVote(ctx context.Context, contract string, candidateID int) (*models.TxResult, error)
	Instantiate(ctx context.Context, msg models.InitMsg, label string) (string, *models.TxResult, error)
}

// Receipts is the local vote receipt store.
type Receipts interface {
	HasVoted(ctx context.Context, wallet, contract string) (bool, error)
	MarkVoted(ctx context.Context, wallet, contract string) error
}

// LoadSnapshot reads one contract as a single logical read. The four
// independent queries and the receipt lookup run concurrently; results are
// only asked for once the close time has passed. Any failure fails the
// whole snapshot.
func LoadSnapshot(ctx context.Context, c Contracts, receipts Receipts, ref models.ContractRef, wallet string, now func() time.Time) (*models.Snapshot, error) {
	snap := &models.Snapshot{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		name, err := c.Name(gctx, ref.Address)
		snap.Name = name
		return errors.Wrap(err, "get name")
	})
	g.Go(func() error {
		list, err := c.Candidates(gctx, ref.Address)
		snap.Candidates = list
		return errors.Wrap(err, "get candidate list")
	})
	g.Go(func() error {
		n, err := c.VotersCount(gctx, ref.Address)
		snap.VotersCount = n
		return errors.Wrap(err, "get voters count")
	})
	g.Go(func() error {
		t, err := c.CloseTime(gctx, ref.Address)
		snap.CloseTime = t
		return errors.Wrap(err, "get close time")
	})
	g.Go(func() error {
		voted, err := receipts.HasVoted(gctx, wallet, ref.Address)
		snap.AlreadyVoted = voted
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if snap.Candidates == nil {
		snap.Candidates = []models.Candidate{}
	}
	snap.Results = []models.CandidateResult{}
	if snap.CloseTime.Before(now()) {
		results, err := c.Results(ctx, ref.Address)
		switch {
		case chain.IsResultsPending(err):
		case err != nil:
			return nil, errors.Wrap(err, "get results")
		case results != nil:
			snap.Results = results
		}
	}
	snap.FetchedAt = now()
	return snap, nil
}
