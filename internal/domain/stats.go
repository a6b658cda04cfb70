package domain

import "time"

type CertificateStats struct {
	Total           int64                   `json:"totalCertificates"`
	Revoked         int64                   `json:"revokedCertificates"`
	Expired         int64                   `json:"expiredCertificates"`
	IssuedInWindow  int64                   `json:"issuedInWindow"`
	WindowStart     time.Time               `json:"windowStart"`
	ByEvidenceLevel map[EvidenceLevel]int64 `json:"byEvidenceLevel"`
	ByJurisdiction  map[string]int64        `json:"byJurisdiction"`
	GeneratedAt     time.Time               `json:"generatedAt"`
}

// StatsRow is the minimal projection needed to aggregate stats.
type StatsRow struct {
	EvidenceLevel EvidenceLevel
	Jurisdictions []string
	IssuedAt      time.Time
	ValidUntil    time.Time
	Revoked       bool
}
