package domain

import "context"

// NotarizationRecord is the external attestation a certificate is built from.
type NotarizationRecord struct {
	NotarizationID string        `json:"notarizationId" yaml:"notarization_id"`
	ContentHash    string        `json:"contentHash" yaml:"content_hash"`
	ExternalTxRef  string        `json:"externalTxRef" yaml:"external_tx_ref"`
	WitnessCount   int           `json:"witnessCount" yaml:"witness_count"`
	EvidenceLevel  EvidenceLevel `json:"evidenceLevel" yaml:"evidence_level"`
	Jurisdictions  []string      `json:"jurisdictions" yaml:"jurisdictions"`
}

// NotarizationLookup resolves a notarization id. Implementations return
// ErrNotFound, ErrLookupTimeout or ErrLookupFailure and never retry.
type NotarizationLookup interface {
	Lookup(ctx context.Context, notarizationID string) (NotarizationRecord, error)
}

type LedgerConfirmation struct {
	TxRef          string
	BlockReference string
	Confirmed      bool
}

// LedgerConfirmer checks that an external transaction reference exists on the
// external ledger and reports where it was included.
type LedgerConfirmer interface {
	Confirm(ctx context.Context, txRef string) (LedgerConfirmation, error)
}

// CustodyEventSink receives committed custody events for fan-out. Delivery is
// best effort and never affects the committed certificate.
type CustodyEventSink interface {
	Publish(ctx context.Context, certificateID string, events []CustodyEvent) error
}
