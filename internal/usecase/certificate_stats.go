package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"truthcert/internal/domain"
)

const DefaultStatsWindow = 30 * 24 * time.Hour

type CertificateStats struct {
	Store CertificateRepository
	Clock Clock
}

// Execute aggregates the store. Expired counts certificates past validUntil
// that were not revoked.
func (s *CertificateStats) Execute(ctx context.Context, window time.Duration) (domain.CertificateStats, error) {
	if s == nil || s.Store == nil {
		return domain.CertificateStats{}, errors.New("certificate stats not configured")
	}
	if window <= 0 {
		window = DefaultStatsWindow
	}
	rows, err := s.Store.StatsRows(ctx)
	if err != nil {
		return domain.CertificateStats{}, err
	}
	now := s.Clock.now()
	stats := domain.CertificateStats{
		WindowStart:     now.Add(-window),
		ByEvidenceLevel: make(map[domain.EvidenceLevel]int64, len(domain.EvidenceLevels)),
		ByJurisdiction:  make(map[string]int64),
		GeneratedAt:     now,
	}
	for _, level := range domain.EvidenceLevels {
		stats.ByEvidenceLevel[level] = 0
	}
	for _, row := range rows {
		stats.Total++
		stats.ByEvidenceLevel[row.EvidenceLevel]++
		for _, j := range domain.NormalizeJurisdictions(row.Jurisdictions) {
			stats.ByJurisdiction[j]++
		}
		switch {
		case row.Revoked:
			stats.Revoked++
		case now.After(row.ValidUntil):
			stats.Expired++
		}
		if !row.IssuedAt.Before(stats.WindowStart) {
			stats.IssuedInWindow++
		}
	}
	return stats, nil
}

// maxWindowDays is the largest day count a time.Duration can hold.
const maxWindowDays = math.MaxInt64 / int64(24*time.Hour)

// ParseWindow accepts "<n>d" day counts or Go durations such as "12h".
func ParseWindow(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultStatsWindow, nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil || n <= 0 || n > maxWindowDays {
			return 0, fmt.Errorf("%w: invalid window %q", domain.ErrValidation, raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: invalid window %q", domain.ErrValidation, raw)
	}
	return d, nil
}
