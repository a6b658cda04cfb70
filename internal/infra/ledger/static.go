package ledger

import (
	"context"
	"fmt"

	"truthcert/internal/domain"
)

// Static confirms transactions from a fixed table of tx reference to block
// reference. References missing from the table are unconfirmed.
type Static struct {
	blocks map[string]string
}

func NewStatic(blocks map[string]string) *Static {
	s := &Static{blocks: make(map[string]string, len(blocks))}
	for tx, block := range blocks {
		s.blocks[tx] = block
	}
	return s
}

func (s *Static) Confirm(ctx context.Context, txRef string) (domain.LedgerConfirmation, error) {
	if err := ctx.Err(); err != nil {
		return domain.LedgerConfirmation{}, fmt.Errorf("%w: %v", domain.ErrLookupTimeout, err)
	}
	block, ok := s.blocks[txRef]
	if !ok || block == "" {
		return domain.LedgerConfirmation{TxRef: txRef}, nil
	}
	return domain.LedgerConfirmation{TxRef: txRef, BlockReference: block, Confirmed: true}, nil
}
