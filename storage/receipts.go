// Package storage keeps the local vote receipts. A receipt only records that
// this client submitted a vote; the contract remains the authority.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// receiptValue is what a marked receipt holds.
const receiptValue = "true"

// KV is a string key-value store that never deletes.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// ReceiptKey builds the receipt key of a wallet and contract pair.
func ReceiptKey(wallet, contract string) string {
	return wallet + "_" + contract
}

// Receipts records which contracts a wallet has voted on from this client.
type Receipts struct {
	kv     KV
	logger *zap.Logger
}

func NewReceipts(kv KV, logger *zap.Logger) *Receipts {
	return &Receipts{kv: kv, logger: logger}
}

// HasVoted reports whether a receipt exists. Any stored value counts.
func (r *Receipts) HasVoted(ctx context.Context, wallet, contract string) (bool, error) {
	_, ok, err := r.kv.Get(ctx, ReceiptKey(wallet, contract))
	if err != nil {
		return false, fmt.Errorf("failed to read receipt: %w", err)
	}
	return ok, nil
}

// MarkVoted stores a receipt for the pair.
func (r *Receipts) MarkVoted(ctx context.Context, wallet, contract string) error {
	if err := r.kv.Set(ctx, ReceiptKey(wallet, contract), receiptValue); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	r.logger.Debug("Vote receipt stored",
		zap.String("wallet", wallet),
		zap.String("contract", contract))
	return nil
}

func (r *Receipts) Close() error {
	return r.kv.Close()
}
