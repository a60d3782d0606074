package service

import (
	"context"
	"time"

	"secret-evoting/models"
	"secret-evoting/workflow"
)

// instrumentedContracts counts every chain request the workflow makes.
type instrumentedContracts struct {
	next    workflow.Contracts
	metrics *MetricsCollector
}

func instrument(next workflow.Contracts, metrics *MetricsCollector) workflow.Contracts {
	return &instrumentedContracts{next: next, metrics: metrics}
}

func (c *instrumentedContracts) Address() string {
	return c.next.Address()
}

func (c *instrumentedContracts) Name(ctx context.Context, contract string) (string, error) {
	v, err := c.next.Name(ctx, contract)
	c.metrics.ObserveChainRequest(models.QueryGetName, err)
	return v, err
}

func (c *instrumentedContracts) Candidates(ctx context.Context, contract string) ([]models.Candidate, error) {
	v, err := c.next.Candidates(ctx, contract)
	c.metrics.ObserveChainRequest(models.QueryGetCandidateList, err)
	return v, err
}

func (c *instrumentedContracts) VotersCount(ctx context.Context, contract string) (uint64, error) {
	v, err := c.next.VotersCount(ctx, contract)
	c.metrics.ObserveChainRequest(models.QueryGetVotersCount, err)
	return v, err
}

func (c *instrumentedContracts) CloseTime(ctx context.Context, contract string) (time.Time, error) {
	v, err := c.next.CloseTime(ctx, contract)
	c.metrics.ObserveChainRequest(models.QueryGetCloseTime, err)
	return v, err
}

func (c *instrumentedContracts) Results(ctx context.Context, contract string) ([]models.CandidateResult, error) {
	v, err := c.next.Results(ctx, contract)
	c.metrics.ObserveChainRequest(models.QueryGetResults, err)
	return v, err
}

func (c *instrumentedContracts) SubmitVote(ctx context.Context, contract string, candidateID int) (*models.TxResult, error) {
	v, err := c.next.SubmitVote(ctx, contract, candidateID)
	c.metrics.ObserveChainRequest("submit_vote", err)
	return v, err
}

func (c *instrumentedContracts) Instantiate(ctx context.Context, msg models.InitMsg, label string) (string, *models.TxResult, error) {
	addr, res, err := c.next.Instantiate(ctx, msg, label)
	c.metrics.ObserveChainRequest("instantiate", err)
	return addr, res, err
}
