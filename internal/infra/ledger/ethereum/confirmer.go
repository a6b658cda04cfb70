package ethereum

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"truthcert/internal/domain"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// receiptReader is the subset of ethclient.Client used for confirmation.
type receiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Confirmer checks that an external transaction reference was mined
// successfully on an EVM chain with enough confirmations.
type Confirmer struct {
	reader           receiptReader
	closer           func()
	minConfirmations uint64
}

func Dial(ctx context.Context, rpcURL string, minConfirmations int) (*Confirmer, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, errors.New("ethereum rpc url is required")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	c := newConfirmer(client, minConfirmations)
	c.closer = client.Close
	return c, nil
}

func newConfirmer(reader receiptReader, minConfirmations int) *Confirmer {
	if minConfirmations < 1 {
		minConfirmations = 1
	}
	return &Confirmer{reader: reader, minConfirmations: uint64(minConfirmations)}
}

func (c *Confirmer) Close() {
	if c != nil && c.closer != nil {
		c.closer()
	}
}

func (c *Confirmer) Confirm(ctx context.Context, txRef string) (domain.LedgerConfirmation, error) {
	out := domain.LedgerConfirmation{TxRef: txRef}
	if !txHashPattern.MatchString(txRef) {
		return out, nil
	}
	receipt, err := c.reader.TransactionReceipt(ctx, common.HexToHash(txRef))
	if err != nil {
		if errors.Is(err, gethcore.NotFound) {
			return out, nil
		}
		return out, classify(ctx, err)
	}
	if receipt == nil || receipt.BlockNumber == nil || receipt.Status != coretypes.ReceiptStatusSuccessful {
		return out, nil
	}
	head, err := c.reader.BlockNumber(ctx)
	if err != nil {
		return out, classify(ctx, err)
	}
	mined := receipt.BlockNumber.Uint64()
	if head < mined || head-mined+1 < c.minConfirmations {
		return out, nil
	}
	out.BlockReference = receipt.BlockNumber.String()
	out.Confirmed = true
	return out, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: ethereum rpc: %v", domain.ErrLookupTimeout, err)
	}
	return fmt.Errorf("%w: ethereum rpc: %v", domain.ErrLookupFailure, err)
}
