package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/healthhub/healthhub/internal/config"
	"github.com/healthhub/healthhub/internal/domain/admin"
	"github.com/healthhub/healthhub/internal/domain/anomaly"
	"github.com/healthhub/healthhub/internal/domain/dashboard"
	"github.com/healthhub/healthhub/internal/domain/emergency"
	"github.com/healthhub/healthhub/internal/domain/fitness"
	"github.com/healthhub/healthhub/internal/domain/healthgraph"
	"github.com/healthhub/healthhub/internal/domain/insights"
	"github.com/healthhub/healthhub/internal/domain/medication"
	"github.com/healthhub/healthhub/internal/domain/nutrition"
	"github.com/healthhub/healthhub/internal/domain/pharmacist"
	"github.com/healthhub/healthhub/internal/domain/profile"
	"github.com/healthhub/healthhub/internal/domain/sleep"
	"github.com/healthhub/healthhub/internal/domain/symptoms"
	"github.com/healthhub/healthhub/internal/domain/telemedicine"
	"github.com/healthhub/healthhub/internal/domain/wellbeing"
	"github.com/healthhub/healthhub/internal/platform/analytics"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/blobstore"
	"github.com/healthhub/healthhub/internal/platform/cache"
	"github.com/healthhub/healthhub/internal/platform/db"
	chatapi "github.com/healthhub/healthhub/internal/platform/integrations/chat"
	wearable "github.com/healthhub/healthhub/internal/platform/integrations/fitness"
	nutritionapi "github.com/healthhub/healthhub/internal/platform/integrations/nutrition"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/middleware"
	"github.com/healthhub/healthhub/internal/platform/notification"
	"github.com/healthhub/healthhub/internal/platform/telemetry"
)

const (
	defaultIssuer = "healthhub"
	cachePrefix   = "healthhub:"
	usageRingSize = 10000
)

// app holds the infrastructure and services shared by serve, seed and the
// tests. Everything is built once by newApp.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *telemetry.Collector
	usage   *analytics.UsageTracker
	ready   *db.Readiness
	limits  middleware.Limits

	pool   *pgxpool.Pool
	store  kvstore.Store
	cache  cache.Cache
	blobs  blobstore.BlobStore
	users  profile.Repository
	tokens *auth.TokenIssuer
	jwt    auth.JWTConfig

	graph    *healthgraph.Graph
	detector *anomaly.Detector
	agent    *pharmacist.Agent

	notifications *notification.Service
	profiles      *profile.Service
	fitness       *fitness.Service
	nutrition     *nutrition.Service
	sleep         *sleep.Service
	symptoms      *symptoms.Service
	medications   *medication.Service
	telemedicine  *telemedicine.Service
	wellbeing     *wellbeing.Service
	emergency     *emergency.Service
	chat          *insights.ChatService
	dashboard     *dashboard.Service
	admin         *admin.Service

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	limits, err := middleware.ParseLimits(cfg.BodyLimit, cfg.UploadLimit)
	if err != nil {
		return nil, err
	}
	a := &app{
		limits:  limits,
		cfg:     cfg,
		logger:  logger,
		metrics: telemetry.NewCollector(telemetry.Config{IncludeRuntime: true}),
		usage:   analytics.NewUsageTracker(usageRingSize),
		ready:   db.NewReadiness(),
	}
	if err := a.openStorage(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.openTokens(); err != nil {
		a.close()
		return nil, err
	}
	a.buildServices()
	return a, nil
}

// openStorage picks a backend for each store: the configured service when
// its URL is set, otherwise an embedded or in-memory substitute.
func (a *app) openStorage(ctx context.Context) error {
	cfg := a.cfg

	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		a.ready.SetPool(pool)
		a.store = kvstore.NewPostgresStore(pool)
		a.logger.Info().Msg("connected to postgres")
	case cfg.SQLitePath != "":
		s, err := kvstore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, func() { _ = s.Close() })
		a.ready.Add("sqlite", s.Ping)
		a.logger.Info().Str("path", cfg.SQLitePath).Msg("using embedded sqlite store")
	default:
		a.store = kvstore.NewMemoryStore()
		a.logger.Warn().Msg("no DATABASE_URL or SQLITE_PATH, data is kept in memory")
	}

	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL, cachePrefix)
		if err != nil {
			return err
		}
		a.cache = r
		a.closers = append(a.closers, func() { _ = r.Close() })
		a.ready.Add("redis", r.Ping)
	} else {
		a.cache = cache.NewMemory(0)
	}

	if !cfg.DemoMode(config.IntegrationStorage) {
		mb, err := blobstore.NewMinioBlobStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return err
		}
		a.blobs = mb
		a.ready.Add("minio", mb.Ping)
	} else {
		a.blobs = blobstore.NewInMemoryBlobStore()
	}

	switch {
	case cfg.MongoURL != "":
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURL))
		if err != nil {
			return fmt.Errorf("connect to mongo: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })
		repo, err := profile.NewMongoRepository(ctx, client, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		a.users = repo
		a.ready.Add("mongo", func(ctx context.Context) error { return client.Ping(ctx, nil) })
	case a.pool != nil:
		a.users = profile.NewPostgresRepository(a.pool)
	default:
		a.users = profile.NewMemoryRepository()
	}
	return nil
}

// openTokens sets up the local token issuer and the matching verifier
// config. Without JWT_SIGNING_KEY a random key is generated, so tokens do
// not survive a restart.
func (a *app) openTokens() error {
	cfg := a.cfg
	key, random, err := resolveSigningKey(cfg.JWTSigningKey)
	if err != nil {
		return err
	}
	if random {
		a.logger.Warn().Msg("JWT_SIGNING_KEY not set, using an ephemeral signing key")
	}
	issuer := cfg.AuthIssuer
	if issuer == "" {
		issuer = defaultIssuer
	}
	a.tokens, err = auth.NewTokenIssuer(key, issuer, cfg.TokenTTL)
	if err != nil {
		return err
	}

	a.jwt = auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.AuthSkipper,
	}
	// An external issuer without a shared key verifies through JWKS.
	if cfg.JWTSigningKey != "" || cfg.AuthIssuer == "" || cfg.IsDev() {
		a.jwt.SigningKey = key
	}
	return nil
}

// resolveSigningKey returns envValue as the signing key, or 32 random
// bytes when it is empty. The second result is true for a random key.
func resolveSigningKey(envValue string) ([]byte, bool, error) {
	if envValue != "" {
		if len(envValue) < 32 {
			return nil, false, fmt.Errorf("JWT_SIGNING_KEY must be at least 32 bytes")
		}
		return []byte(envValue), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

func (a *app) buildServices() {
	cfg, logger, store := a.cfg, a.logger, a.store

	a.graph = healthgraph.NewSeeded()
	a.detector = anomaly.NewDetector(cfg.AnomalyThreshold)
	a.agent = pharmacist.NewAgent()

	sender := notification.NewLogSender(logger)
	a.notifications = notification.NewService(store, notification.NewTemplateEngine(), sender, sender, logger)

	foods := nutritionapi.New(nutritionapi.Config{
		BaseURL: cfg.NutritionBaseURL,
		AppID:   cfg.NutritionAppID,
		AppKey:  cfg.NutritionAppKey,
	}, logger)
	foods.SetCache(a.cache)
	foods.SetMetrics(a.metrics)

	device := wearable.New(wearable.Config{
		BaseURL:      cfg.FitnessBaseURL,
		AuthURL:      cfg.FitnessAuthURL,
		TokenURL:     cfg.FitnessTokenURL,
		ClientID:     cfg.FitnessClientID,
		ClientSecret: cfg.FitnessClientSecret,
		RedirectURL:  cfg.FitnessRedirectURL,
		MockSeed:     cfg.MockSeed,
	}, logger)
	device.SetCache(a.cache)
	device.SetMetrics(a.metrics)

	completer := chatapi.New(chatapi.Config{
		BaseURL: cfg.ChatBaseURL,
		APIKey:  cfg.ChatAPIKey,
		Model:   cfg.ChatModel,
	}, logger)
	completer.SetMetrics(a.metrics)

	a.profiles = profile.NewService(a.users, a.tokens, cfg.MockSeed, logger)
	a.fitness = fitness.NewService(store, device, logger)
	a.nutrition = nutrition.NewService(store, foods, logger)
	a.sleep = sleep.NewService(store, a.fitness, logger)
	a.symptoms = symptoms.NewService(a.graph, store, logger)
	a.symptoms.SetMetrics(a.metrics)
	a.medications = medication.NewService(store, a.notifications, logger)
	a.telemedicine = telemedicine.NewService(store, a.blobs, a.notifications, logger)
	a.wellbeing = wellbeing.NewService(store, logger)
	a.emergency = emergency.NewService(store, a.notifications, logger)

	a.chat = insights.NewChatService(completer, middleware.NewSlidingWindow(cfg.ChatRateLimit, cfg.ChatRateWindow), store, logger)
	a.chat.SetMetrics(a.metrics)

	a.dashboard = dashboard.NewService(dashboard.Sources{
		Vitals:        a.fitness,
		Nutrition:     a.nutrition,
		Sleep:         a.sleep,
		Mood:          a.wellbeing,
		Medications:   a.medications,
		Appointments:  a.telemedicine,
		Notifications: a.notifications,
	}, a.detector, logger)
	a.dashboard.SetMetrics(a.metrics)

	a.admin = admin.NewService(a.users, store, a.graph, a.usage, a.notifications, cfg.IntegrationModes(), logger)
}

// close releases connections in reverse order of opening.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
