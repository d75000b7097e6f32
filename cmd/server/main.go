// Command server runs the contractor prequalification API. main wires
// configuration, storage and domain services, then hands the router to the
// HTTP server. Business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"prequal/internal/application"
	applicationhandler "prequal/internal/application/handler"
	"prequal/internal/documents"
	documenthandler "prequal/internal/documents/handler"
	"prequal/internal/jwtauth"
	"prequal/internal/platform/config"
	"prequal/internal/platform/httpserver"
	"prequal/internal/platform/logger"
	"prequal/internal/platform/metrics"
	platformredis "prequal/internal/platform/redis"
	"prequal/internal/projects"
	"prequal/internal/questionnaire"
	"prequal/internal/records"
	recordhandler "prequal/internal/records/handler"
	"prequal/internal/requirements"
	"prequal/internal/submission"
	"prequal/internal/templates"
	httptransport "prequal/internal/transport/http"
	"prequal/pkg/platform/audit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage. Without a DSN the server runs fully in memory, which is only
	// useful for local development.
	var (
		db        *sql.DB
		appStore  application.Store
		subStore  submission.Store
		recStore  records.Store
		docStore  documents.Store
		tmplStore templates.Store
		reqStore  requirements.Store
		qStore    questionnaire.Store
		projStore projects.Store
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		appStore = application.NewPostgres(db)
		subStore = submission.NewPostgres(db)
		recStore = records.NewPostgres(db)
		docStore = documents.NewPostgres(db)
		tmplStore = templates.NewPostgres(db)
		reqStore = requirements.NewPostgres(db)
		qStore = questionnaire.NewPostgres(db)
		projStore = projects.NewPostgres(db)
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory stores")
		appStore = application.NewInMemory()
		subStore = submission.NewInMemory()
		recStore = records.NewInMemory()
		docStore = documents.NewInMemory()
		tmplStore = templates.NewInMemory()
		reqStore = requirements.NewInMemory()
		qStore = questionnaire.NewInMemory()
		projStore = projects.NewInMemory()
	}

	// Snapshot cache. Optional; a nil client disables caching.
	cache, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	// Audit trail. Kafka when brokers are configured, in-memory otherwise.
	var sink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	} else {
		log.Warn("KAFKA_BROKERS not set, audit events stay in memory")
		sink = audit.NewInMemorySink()
	}
	auditor := audit.NewPublisher(sink, audit.WithAsyncBuffer(256), audit.WithLogger(log))
	defer auditor.Close()

	// Blob storage. S3 (or an S3-compatible endpoint) when postgres is
	// configured; the in-memory dev mode keeps blobs in memory too.
	var blobs documents.BlobStore
	if cfg.PostgresDSN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			log.Error("load aws config", "error", err)
			os.Exit(1)
		}
		blobs = documents.NewS3BlobStore(awsCfg, cfg.S3Bucket, cfg.S3Endpoint)
	} else {
		blobs = documents.NewInMemoryBlobStore()
	}

	// Domain services. The question checker and project resolver exist so
	// submission preconditions can be evaluated before the full services
	// are assembled.
	resolver := application.NewResolver(appStore)
	checker := records.NewQuestionChecker(recStore, qStore, resolver)
	subSvc := submission.NewService(subStore, recStore, checker,
		submission.WithAudit(auditor),
		submission.WithMetrics(m),
		submission.WithLogger(log),
	)
	appSvc := application.NewService(appStore, projStore, subSvc,
		application.WithAudit(auditor),
		application.WithLogger(log),
	)
	tmplSvc := templates.New(tmplStore, templates.WithLogger(log))

	recOpts := []records.Option{records.WithLogger(log)}
	if cache != nil {
		recOpts = append(recOpts, records.WithSnapshotCache(cache, cfg.Redis.SnapshotTTL))
	}
	recSvc := records.NewService(recStore, subSvc, tmplSvc, reqStore, qStore, resolver, recOpts...)

	docSvc := documents.NewService(docStore, blobs, subSvc, recSvc,
		documents.WithAudit(auditor),
		documents.WithMetrics(m),
		documents.WithLogger(log),
	)

	router := httptransport.New(httptransport.Deps{
		Logger:       log,
		Metrics:      m,
		JWTValidator: jwtauth.New(cfg.JWTSigningKey),
		Applications: applicationhandler.New(appSvc, projStore, log),
		Records:      recordhandler.New(appSvc, recSvc, subSvc, log),
		Documents:    documenthandler.New(appSvc, docSvc, log),
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting server", "addr", cfg.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
