package domain

import "time"

type CustodyEventKind string

const (
	EventCertificateRequest      CustodyEventKind = "Certificate Request"
	EventContentVerification     CustodyEventKind = "Content Verification"
	EventExternalRecordConfirmed CustodyEventKind = "External Record Confirmed"
	EventCertificateGenerated    CustodyEventKind = "Certificate Generated"
	EventCertificateRevoked      CustodyEventKind = "Certificate Revoked"
)

// IssuanceSequence is the fixed order of events recorded when a certificate is issued.
var IssuanceSequence = []CustodyEventKind{
	EventCertificateRequest,
	EventContentVerification,
	EventExternalRecordConfirmed,
	EventCertificateGenerated,
}

const (
	ActorValidator            = "validator"
	ActorLedgerService        = "ledger service"
	ActorCertificateAuthority = "certificate authority"
)

type CustodyEvent struct {
	Seq            int64            `json:"seq"`
	Timestamp      time.Time        `json:"timestamp"`
	Kind           CustodyEventKind `json:"eventKind"`
	Actor          string           `json:"actor"`
	EvidenceHash   string           `json:"evidenceHash"`
	BlockReference string           `json:"blockReference,omitempty"`
}

// ChainOfCustody is ordered oldest first and only ever grows.
type ChainOfCustody []CustodyEvent

// Find returns the first event of the given kind.
func (c ChainOfCustody) Find(kind CustodyEventKind) (CustodyEvent, bool) {
	for _, ev := range c {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return CustodyEvent{}, false
}
