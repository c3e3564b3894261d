package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"churnboard/internal/account/device"
	accounthandler "churnboard/internal/account/handler"
	accountservice "churnboard/internal/account/service"
	"churnboard/internal/account/store/resettoken"
	userstore "churnboard/internal/account/store/user"
	"churnboard/internal/dashboard"
	dashboardhandler "churnboard/internal/dashboard/handler"
	"churnboard/internal/explain"
	explaincache "churnboard/internal/explain/cache"
	explainhandler "churnboard/internal/explain/handler"
	explainmetrics "churnboard/internal/explain/metrics"
	"churnboard/internal/explain/source"
	jwttoken "churnboard/internal/jwt_token"
	"churnboard/internal/live"
	"churnboard/internal/platform/config"
	"churnboard/internal/platform/httpserver"
	"churnboard/internal/platform/kafka"
	"churnboard/internal/platform/kafka/consumer"
	"churnboard/internal/platform/kafka/producer"
	"churnboard/internal/platform/logger"
	"churnboard/internal/platform/metrics"
	"churnboard/internal/platform/postgres"
	"churnboard/internal/platform/redis"
	"churnboard/internal/platform/tracing"
	predictionhandler "churnboard/internal/prediction/handler"
	predictionmetrics "churnboard/internal/prediction/metrics"
	"churnboard/internal/prediction/predictor"
	predictionservice "churnboard/internal/prediction/service"
	predictionstore "churnboard/internal/prediction/store"
	"churnboard/internal/ratelimit"
	httptransport "churnboard/internal/transport/http"
)

const (
	tokenIssuer     = "churnboard"
	tokenAudience   = "churnboard-api"
	shutdownTimeout = 10 * time.Second
	topicPartitions = 3
)

func main() {
	cfg, errs := config.FromEnv()
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// stores groups the persistence backends chosen from configuration.
type stores struct {
	predictions predictionservice.Store
	users       accountservice.UserStore
	resets      accountservice.ResetTokenStore
	rankings    explain.Cache
	limits      ratelimit.Store
	health      httptransport.HealthChecker
	db          *sql.DB
	redis       *redis.Client
}

func (s *stores) close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	s := &stores{}
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, postgres.Options{
			URL:          cfg.Database.URL,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.db = db
		s.predictions = predictionstore.NewPostgres(db)
		s.users = userstore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		s.predictions = predictionstore.NewInMemory()
		s.users = userstore.New()
		log.Info("using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		s.close()
		return nil, err
	}
	if rc != nil {
		s.redis = rc
		s.health = rc
		s.resets = resettoken.NewRedis(rc.Client)
		s.rankings = explaincache.NewRedis(rc.Client, cfg.Explain.CacheTTL)
		s.limits = ratelimit.NewRedis(rc.Client)
		log.Info("using redis for reset tokens, ranking cache and rate limits")
	} else {
		s.resets = resettoken.NewInMemory()
		s.rankings = explaincache.NewMemory()
		s.limits = ratelimit.NewInMemory()
	}
	return s, nil
}

// events wires prediction fan-out: through Kafka when brokers are set,
// otherwise straight into the in-process notifier.
type events struct {
	publisher predictionservice.Publisher
	producer  *producer.Producer
	consumer  *consumer.Consumer
}

func (e *events) close() {
	if e.consumer != nil {
		e.consumer.Close()
	}
	if e.producer != nil {
		e.producer.Close()
	}
}

func openEvents(ctx context.Context, cfg config.Kafka, notifier *live.Notifier, log *slog.Logger) (*events, error) {
	if len(cfg.Brokers) == 0 {
		return &events{publisher: notifier}, nil
	}
	if err := kafka.EnsureTopic(ctx, cfg.Brokers, cfg.Topic, topicPartitions, 1); err != nil {
		return nil, err
	}
	prod, err := producer.New(cfg.Brokers)
	if err != nil {
		return nil, err
	}

	// Every instance serves its own stream clients, so each one needs every
	// event and joins a group of its own.
	cons, err := consumer.New(cfg.Brokers, instanceGroupID(cfg.GroupID), []string{cfg.Topic}, log)
	if err != nil {
		prod.Close()
		return nil, err
	}
	log.Info("prediction events via kafka", "topic", cfg.Topic)
	return &events{
		publisher: live.NewKafkaPublisher(prod, cfg.Topic),
		producer:  prod,
		consumer:  cons,
	}, nil
}

func instanceGroupID(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = uuid.NewString()
	}
	return base + "-" + host
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting churnboard", "config", cfg.LogSummary())

	tp, err := tracing.NewProvider(ctx, cfg.Tracing, cfg.Env, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer st.close()

	appMetrics := metrics.New()

	tokens := jwttoken.NewIssuer(cfg.Server.JWTSigningKey, tokenIssuer, tokenAudience)
	accounts, err := accountservice.New(st.users, st.resets, tokens,
		accountservice.WithLogger(log),
		accountservice.WithMetrics(appMetrics),
		accountservice.WithDevices(device.NewService(!cfg.Server.RegulatedMode)),
		accountservice.WithTokenTTL(cfg.Server.TokenTTL),
		accountservice.WithResetTokenTTL(cfg.Server.ResetTokenTTL),
		accountservice.WithExposeResetToken(cfg.IsDevelopment()),
		accountservice.WithDefaultSettings(cfg.Predictor.DefaultModel, cfg.Predictor.DefaultThresholdType),
	)
	if err != nil {
		return fmt.Errorf("init account service: %w", err)
	}

	dashboards, err := dashboard.New(st.predictions, dashboard.WithLogger(log))
	if err != nil {
		return fmt.Errorf("init dashboard service: %w", err)
	}
	hub := live.NewHub(live.WithHubLogger(log), live.WithHubMetrics(appMetrics))
	notifier := live.NewNotifier(hub, dashboards, log)

	ev, err := openEvents(ctx, cfg.Kafka, notifier, log)
	if err != nil {
		return fmt.Errorf("init prediction events: %w", err)
	}
	defer ev.close()

	predictions, err := predictionservice.New(st.predictions, predictor.New(cfg.Predictor.URL, cfg.Predictor.Timeout),
		predictionservice.WithLogger(log),
		predictionservice.WithMetrics(predictionmetrics.New()),
		predictionservice.WithDefaults(accounts),
		predictionservice.WithPublisher(ev.publisher),
		predictionservice.WithFallbackSettings(cfg.Predictor.DefaultModel, cfg.Predictor.DefaultThresholdType),
	)
	if err != nil {
		return fmt.Errorf("init prediction service: %w", err)
	}

	fetcher := source.NewRouter(
		source.NewHTTPFetcher(cfg.Explain.FetchTimeout),
		source.NewS3Fetcher(source.NewS3Client(cfg.Explain)),
	)
	rankings, err := explain.New(fetcher, st.rankings, cfg.Explain.Source,
		explain.WithLogger(log),
		explain.WithMetrics(explainmetrics.New()),
		explain.WithWorkers(cfg.Explain.Workers),
		explain.WithFetchTimeout(cfg.Explain.FetchTimeout),
	)
	if err != nil {
		return fmt.Errorf("init explain service: %w", err)
	}
	defer rankings.Close()

	authLimit := ratelimit.New(st.limits, "auth", cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(appMetrics),
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
	)

	accountHandler := accounthandler.New(accounts, log)
	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:           log,
		Metrics:          appMetrics,
		Health:           st.health,
		Validator:        tokens,
		TrustedProxyHops: cfg.Server.TrustedProxyHops,
		PublicLimit:      authLimit.Handler,
		Public:           []func(r chi.Router){accountHandler.RegisterPublic},
		Protected: []httptransport.RouteRegistrar{
			accountHandler,
			predictionhandler.New(predictions, log),
			dashboardhandler.New(dashboards, hub, log),
			explainhandler.New(rankings, log),
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router, hub.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, shutdownTimeout, log)
	})
	if ev.consumer != nil {
		g.Go(func() error {
			return ev.consumer.Run(gctx, live.EventHandler(notifier))
		})
	}
	return g.Wait()
}
