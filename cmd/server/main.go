// Command server wires the vault engine: config, logger, postgres, the
// optional redis resolution cache, the audit outbox worker and its Kafka
// producer, the boundary client, and an HTTP server exposing health and
// metrics. Engine operations are invoked by in-process callers; there is no
// public HTTP API for them here.
package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultcore/internal/boundary"
	"vaultcore/internal/crypto"
	"vaultcore/internal/platform/config"
	"vaultcore/internal/platform/httpserver"
	"vaultcore/internal/platform/kafka"
	"vaultcore/internal/platform/logger"
	"vaultcore/internal/platform/metrics"
	"vaultcore/internal/platform/postgres"
	"vaultcore/internal/platform/redis"
	"vaultcore/internal/vault/service"
	"vaultcore/internal/vault/store/fields"
	"vaultcore/internal/vault/store/fingerprint"
	"vaultcore/internal/vault/store/ledger"
	"vaultcore/internal/vault/store/vaults"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/pkg/platform/audit/publisher"
	auditpg "vaultcore/pkg/platform/audit/store/postgres"
	"vaultcore/pkg/platform/audit/worker"
	"vaultcore/pkg/platform/sentinel"
	"vaultcore/pkg/platform/tx"
	"vaultcore/pkg/requestcontext"
)

func main() {
	log := logger.New("server")
	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(log *logger.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.MasterSealKey == "" {
		return errors.New("MASTER_SEAL_KEY is required")
	}
	masterSealKey, err := hex.DecodeString(cfg.MasterSealKey)
	if err != nil || len(masterSealKey) != crypto.KeySize {
		return errors.New("MASTER_SEAL_KEY must be a hex-encoded 32-byte public key")
	}
	if cfg.FingerprintSalt == "" {
		return errors.New("FINGERPRINT_SALT is required")
	}
	if cfg.Boundary.URL == "" {
		return errors.New("BOUNDARY_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	auditStore := auditpg.New(db)
	auditPub := publisher.NewPublisher(auditStore)
	defer auditPub.Close()

	opts := []service.Option{
		service.WithAudit(auditPub),
		service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		service.WithLogger(log),
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		opts = append(opts, service.WithResolveCache(
			service.NewRedisResolveCache(redisClient, cfg.Redis.ResolveTTL, log)))
	}

	svc := service.New(service.Deps{
		Runner:        tx.NewRunner(db),
		Vaults:        vaults.NewPostgres(db),
		Ledger:        ledger.NewPostgres(db),
		Fields:        fields.NewPostgres(db),
		Fingerprints:  fingerprint.NewPostgres(db),
		Boundary:      boundary.NewHTTPClient(cfg.Boundary),
		Salts:         crypto.NewSalts([]byte(cfg.FingerprintSalt)),
		MasterSealKey: masterSealKey,
	}, opts...)

	// The outbox worker only runs when brokers are configured; without them
	// audit rows accumulate in postgres until a worker drains them.
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(ctx, kafka.Config{
			Brokers:          cfg.Kafka.Brokers,
			ClientID:         "vaultcore-server",
			TopicPartitions:  6,
			TopicReplication: 1,
		}, log)
		if err != nil {
			return err
		}
		defer producer.Close()

		w := worker.NewWorker(auditStore, producer, cfg.Kafka.AuditTopic,
			worker.WithInterval(cfg.Kafka.PollEvery),
			worker.WithLogger(logger.New("outbox-worker")))
		if err := producer.EnsureTopics(ctx, w.Topics()...); err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("outbox worker stopped")
			}
		}()
	}

	srv := httpserver.New(cfg.Addr, router(db, svc, log))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()
	log.Info().Str("addr", cfg.Addr).Msg("vaultcore server started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// router serves operational endpoints. The engine's data operations have no
// public HTTP surface; the one lookup exposed here returns scope metadata
// only, never vaulted data.
func router(db *sql.DB, svc *service.Service, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			ctx = requestcontext.WithRequestID(ctx, chimiddleware.GetReqID(ctx))
			ctx = log.WithContext(ctx)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, "postgres unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/internal/scoped-vaults/{externalID}", func(w http.ResponseWriter, req *http.Request) {
		scoped, err := svc.ResolveExternalID(req.Context(), chi.URLParam(req, "externalID"))
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound):
				status = http.StatusNotFound
			case dErrors.HasCode(err, dErrors.CodeValidation):
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          scoped.ID.String(),
			"vault_id":    scoped.VaultID.String(),
			"tenant_id":   scoped.TenantID.String(),
			"external_id": scoped.ExternalID,
			"is_active":   scoped.IsActive,
			"created_at":  scoped.CreatedAt,
		})
	})
	return r
}
