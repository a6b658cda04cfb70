package notary

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"truthcert/internal/domain"
)

// Fixture is one notarization in a fixtures file. BlockReference, when set,
// marks the external transaction as confirmed for the static ledger confirmer.
type Fixture struct {
	domain.NotarizationRecord `yaml:",inline"`
	BlockReference            string `yaml:"block_reference"`
}

type fixturesFile struct {
	Notarizations []Fixture `yaml:"notarizations"`
}

func ReadFixtures(path string) ([]Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read notary fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

func ParseFixtures(raw []byte) ([]Fixture, error) {
	var file fixturesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse notary fixtures: %w", err)
	}
	for i, f := range file.Notarizations {
		if f.NotarizationID == "" {
			return nil, fmt.Errorf("notary fixture %d: notarization_id is required", i)
		}
	}
	return file.Notarizations, nil
}

// Static serves notarizations from memory. It backs local runs and tests.
type Static struct {
	records map[string]domain.NotarizationRecord
}

func NewStatic(records ...domain.NotarizationRecord) *Static {
	s := &Static{records: make(map[string]domain.NotarizationRecord, len(records))}
	for _, rec := range records {
		rec.Jurisdictions = append([]string(nil), rec.Jurisdictions...)
		s.records[rec.NotarizationID] = rec
	}
	return s
}

func NewStaticFromFixtures(fixtures []Fixture) *Static {
	records := make([]domain.NotarizationRecord, 0, len(fixtures))
	for _, f := range fixtures {
		records = append(records, f.NotarizationRecord)
	}
	return NewStatic(records...)
}

func (s *Static) Lookup(ctx context.Context, notarizationID string) (domain.NotarizationRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.NotarizationRecord{}, classify(ctx, err)
	}
	rec, ok := s.records[notarizationID]
	if !ok {
		return domain.NotarizationRecord{}, fmt.Errorf("%w: notarization %s", domain.ErrNotFound, notarizationID)
	}
	rec.Jurisdictions = append([]string(nil), rec.Jurisdictions...)
	return rec, nil
}
