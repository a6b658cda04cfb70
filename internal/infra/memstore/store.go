package memstore

import (
	"context"
	"fmt"
	"sync"

	"truthcert/internal/domain"
	"truthcert/internal/infra/custody"
)

// Store keeps certificates in memory and their custody in a custody.Ledger.
// It backs the service when no POSTGRES_DSN is configured and in tests.
//
// mu guards the maps only. Writes and snapshots of one certificate are
// serialized by that certificate's own lock, which is held across the ledger
// append. Certificates are never removed, so a lookup that finds one stays
// valid once its lock is held.
type Store struct {
	mu     sync.RWMutex
	certs  map[string]domain.StoredCertificate
	locks  map[string]*sync.Mutex
	ledger *custody.Ledger
}

func New(ledger *custody.Ledger) *Store {
	if ledger == nil {
		ledger = custody.New()
	}
	return &Store{
		certs:  make(map[string]domain.StoredCertificate),
		locks:  make(map[string]*sync.Mutex),
		ledger: ledger,
	}
}

func (s *Store) Ledger() *custody.Ledger {
	return s.ledger
}

func (s *Store) lock(certificateID string) func() {
	s.mu.Lock()
	l := s.locks[certificateID]
	if l == nil {
		l = &sync.Mutex{}
		s.locks[certificateID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Store) lookup(certificateID string) (domain.StoredCertificate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[certificateID]
	return cert, ok
}

func (s *Store) put(cert domain.StoredCertificate) {
	s.mu.Lock()
	s.certs[cert.Record.CertificateID] = cert
	s.mu.Unlock()
}

func (s *Store) Issue(ctx context.Context, cert domain.StoredCertificate, events []domain.CustodyEvent) ([]domain.CustodyEvent, error) {
	id := cert.Record.CertificateID
	if id == "" {
		return nil, fmt.Errorf("%w: certificate id is required", domain.ErrValidation)
	}
	unlock := s.lock(id)
	defer unlock()
	if _, ok := s.lookup(id); ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyExists, id)
	}
	committed, err := s.ledger.AppendAll(ctx, id, events)
	if err != nil {
		return nil, err
	}
	cert.Record.Jurisdictions = append([]string(nil), cert.Record.Jurisdictions...)
	cert.Revocation = nil
	s.put(cert)
	return committed, nil
}

func (s *Store) Get(ctx context.Context, certificateID string) (domain.StoredCertificate, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredCertificate{}, err
	}
	cert, ok := s.lookup(certificateID)
	if !ok {
		return domain.StoredCertificate{}, domain.ErrNotFound
	}
	return cloneCertificate(cert), nil
}

// Snapshot returns the certificate and its custody history as of a single
// point: no issue or revoke of the certificate can land between the reads.
func (s *Store) Snapshot(ctx context.Context, certificateID string) (domain.StoredCertificate, []domain.CustodyEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredCertificate{}, nil, err
	}
	if _, ok := s.lookup(certificateID); !ok {
		return domain.StoredCertificate{}, nil, domain.ErrNotFound
	}
	unlock := s.lock(certificateID)
	defer unlock()
	cert, _ := s.lookup(certificateID)
	history, err := s.ledger.History(ctx, certificateID)
	if err != nil {
		return domain.StoredCertificate{}, nil, err
	}
	return cloneCertificate(cert), history, nil
}

func (s *Store) Revoke(ctx context.Context, certificateID string, rev domain.Revocation, event domain.CustodyEvent) (domain.CustodyEvent, error) {
	if _, ok := s.lookup(certificateID); !ok {
		return domain.CustodyEvent{}, domain.ErrNotFound
	}
	unlock := s.lock(certificateID)
	defer unlock()
	cert, _ := s.lookup(certificateID)
	if cert.Revocation != nil {
		return domain.CustodyEvent{}, domain.ErrAlreadyRevoked
	}
	committed, err := s.ledger.Append(ctx, certificateID, event)
	if err != nil {
		return domain.CustodyEvent{}, err
	}
	rev.RevokedAt = domain.NormalizeTime(rev.RevokedAt)
	cert.Revocation = &rev
	s.put(cert)
	return committed, nil
}

func (s *Store) StatsRows(ctx context.Context) ([]domain.StatsRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]domain.StatsRow, 0, len(s.certs))
	for _, cert := range s.certs {
		rows = append(rows, domain.StatsRow{
			EvidenceLevel: cert.Record.EvidenceLevel,
			Jurisdictions: append([]string(nil), cert.Record.Jurisdictions...),
			IssuedAt:      cert.Record.IssuedAt,
			ValidUntil:    cert.Record.ValidUntil,
			Revoked:       cert.Revocation != nil,
		})
	}
	return rows, nil
}

func cloneCertificate(cert domain.StoredCertificate) domain.StoredCertificate {
	cert.Record.Jurisdictions = append([]string(nil), cert.Record.Jurisdictions...)
	if cert.Revocation != nil {
		rev := *cert.Revocation
		cert.Revocation = &rev
	}
	return cert
}
