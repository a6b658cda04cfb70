package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"truthcert/internal/config"
	"truthcert/internal/domain"
	"truthcert/internal/infra/auth/apikey"
	"truthcert/internal/infra/crypto"
	"truthcert/internal/infra/custody"
	"truthcert/internal/infra/db"
	"truthcert/internal/infra/document"
	"truthcert/internal/infra/events/amqp"
	httpinfra "truthcert/internal/infra/http"
	"truthcert/internal/infra/keys/soft"
	"truthcert/internal/infra/ledger"
	"truthcert/internal/infra/ledger/ethereum"
	"truthcert/internal/infra/memstore"
	"truthcert/internal/infra/notary"
	"truthcert/internal/infra/policyopa"
	"truthcert/internal/infra/ratelimit"
	"truthcert/internal/observability/logger"
	"truthcert/internal/observability/metrics"
	"truthcert/internal/usecase"
)

type app struct {
	server  *httpinfra.Server
	mode    string
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.L().Warn("shutdown cleanup failed", zap.Error(err))
		}
	}
}

func newApp(ctx context.Context, cfg config.Config) (_ *app, err error) {
	a := &app{mode: "memory"}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	keys, err := soft.NewKeyringFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("load keyring: %w", err)
	}

	store, err := db.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	var (
		certs  usecase.CertificateRepository
		health func(ctx context.Context) error
	)
	if store.DB != nil {
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		certs = db.NewCertificateRepository(store.DB)
		health = func(ctx context.Context) error {
			sqlDB, err := store.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		a.mode = "db"
	} else {
		certs = memstore.New(custody.New())
	}

	lookup, confirmer, err := externalSources(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	var sink domain.CustodyEventSink
	if cfg.AMQPURL != "" {
		pub, err := amqp.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		sink = pub
	}

	policy, err := policyopa.NewEngine(ctx, cfg.IssuerPolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load issuer policy: %w", err)
	}
	logger.L().Info("issuer policy loaded", zap.String("policy_hash", policy.PolicyHash()))

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 && cfg.RedisAddr != "" {
		rl, err := ratelimit.NewRedis(ratelimit.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rl.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = rl.Ping(pingCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("redis rate limiter: %w", err)
		}
		limiter = rl
	}

	reg, err := metrics.New()
	if err != nil {
		return nil, err
	}

	signer := crypto.NewEngine(keys)
	renderer := document.NewRenderer()
	builder := &usecase.CertificateBuilder{
		Lookup:        lookup,
		Keys:          keys,
		IssuerName:    cfg.IssuerName,
		Validity:      cfg.CertValidity(),
		LookupTimeout: cfg.LookupTimeout(),
	}

	a.server = httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Issue: &usecase.IssueCertificate{
			Builder:             builder,
			Confirmer:           confirmer,
			Signer:              signer,
			Store:               certs,
			Sink:                sink,
			Renderer:            renderer,
			Metrics:             reg,
			LookupTimeout:       cfg.LookupTimeout(),
			VerificationBaseURL: cfg.PublicBaseURL,
		},
		Verify: &usecase.VerifyCertificate{
			Store:         certs,
			Signer:        signer,
			Keys:          keys,
			Policy:        policy,
			AllowedKeyIDs: cfg.IssuerAllowedKeyIDs,
			Metrics:       reg,
		},
		Revoke:  &usecase.RevokeCertificate{Store: certs, Sink: sink, Metrics: reg},
		Preview: &usecase.PreviewCertificate{Builder: builder, BaseURL: cfg.PublicBaseURL},
		Stats:   &usecase.CertificateStats{Store: certs},
		Document: &usecase.CertificateDocument{
			Store:               certs,
			Renderer:            renderer,
			Metrics:             reg,
			VerificationBaseURL: cfg.PublicBaseURL,
		},
		Authenticator: apikey.NewAuthenticator(cfg.AdminAPIKey),
		RateLimiter:   limiter,
		Metrics:       reg,
		Health:        health,
		Mode:          a.mode,
	})
	return a, nil
}

// externalSources picks the notarization lookup and ledger confirmer. A live
// notary needs a live chain; a fixtures file serves both.
func externalSources(ctx context.Context, cfg config.Config, a *app) (domain.NotarizationLookup, domain.LedgerConfirmer, error) {
	var (
		lookup    domain.NotarizationLookup
		confirmer domain.LedgerConfirmer
		fixtures  []notary.Fixture
	)
	if cfg.NotaryFixturesFile != "" {
		var err error
		fixtures, err = notary.ReadFixtures(cfg.NotaryFixturesFile)
		if err != nil {
			return nil, nil, err
		}
	}

	switch {
	case cfg.NotaryBaseURL != "":
		lookup = notary.NewClient(cfg.NotaryBaseURL, cfg.NotaryAPIToken, cfg.LookupTimeout())
	case fixtures != nil:
		lookup = notary.NewStaticFromFixtures(fixtures)
	default:
		return nil, nil, errors.New("no notarization source configured: set NOTARY_BASE_URL or NOTARY_FIXTURES_FILE")
	}
	lookup = notary.NewCached(lookup, cfg.NotaryCacheTTL(), cfg.LookupTimeout())

	switch {
	case cfg.EthRPCURL != "":
		c, err := ethereum.Dial(ctx, cfg.EthRPCURL, cfg.EthMinConfirmations)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() error { c.Close(); return nil })
		confirmer = c
	case fixtures != nil:
		blocks := make(map[string]string, len(fixtures))
		for _, f := range fixtures {
			if f.BlockReference != "" {
				blocks[f.ExternalTxRef] = f.BlockReference
			}
		}
		confirmer = ledger.NewStatic(blocks)
	default:
		return nil, nil, errors.New("no ledger configured: set ETH_RPC_URL or NOTARY_FIXTURES_FILE")
	}
	return lookup, confirmer, nil
}
