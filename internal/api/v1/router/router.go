package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/pgmq"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the full HTTP surface: Postgres pool, Redis, S3, Pub/Sub,
// Stripe, repositories, services, handlers, and middleware.
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	// 1. Open the Postgres pool.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DB pool")
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Redis for the premium flag cache. A dead Redis only costs cache
	// hits; the subscription service falls back to Postgres.
	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		logger.Warn().Err(err).Msg("Invalid Redis URL, premium flag caching disabled")
	} else {
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unreachable at startup, premium flag caching degraded")
		}
	}

	// 3. S3 client for the photo archive.
	s3Config, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load S3 config")
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	// 4. Validator.
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Pub/Sub publisher for ad-reward audit events.
	var pubSubPublisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(context.Background(), cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Pub/Sub publisher")
			return nil, nil, err
		}
		pubSubPublisher = p
	} else {
		logger.Warn().Msg("GCP project not configured, ad audit events disabled")
	}

	// 6. Vision API key, fetched from Secret Manager when not in the
	// environment.
	visionAPIKey := cfg.VisionAPIKey
	if visionAPIKey == "" && cfg.GCPProjectID != "" {
		sm, err := service.NewSecretManagerService(context.Background(), cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Secret Manager client")
			return nil, nil, err
		}
		visionAPIKey, err = sm.GetSecret(context.Background(), cfg.VisionSecretName)
		if err != nil {
			logger.Error().Err(err).Str("secret", cfg.VisionSecretName).Msg("Failed to fetch vision API key")
			return nil, nil, err
		}
		_ = sm.Close()
	}

	// 7. Repositories.
	userRepo := repository.NewUserRepo(pool)
	subscriptionRepo := repository.NewSubscriptionRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	cacheRepo := repository.NewAnalysisCacheRepo(pool)
	adWatchRepo := repository.NewAdWatchRepo(pool)
	replacementRepo := repository.NewReplacementRepo(pool)
	dlqRepo := repository.NewDLQRepository(pool)

	// 8. Services.
	queue := pgmq.New(pool)
	subscriptionSvc := service.NewSubscriptionService(subscriptionRepo, redisClient, time.Duration(cfg.PremiumCacheTTLSec)*time.Second, logger)
	usageSvc := service.NewUsageService(usageRepo, subscriptionSvc, map[model.FeatureKind]int{
		model.FeatureMealScan:     cfg.MealScanDailyLimit,
		model.FeatureLabelScan:    cfg.LabelScanDailyLimit,
		model.FeatureProgressScan: cfg.ProgressScanWeeklyLimit,
	}, nil, logger)
	photoSvc := service.NewPhotoService(s3Client, cfg.S3Bucket, logger)
	cacheSvc := service.NewCacheService(cacheRepo, photoSvc, queue, service.CacheConfig{
		SimilarityThreshold: cfg.SimilarityThreshold,
		ScanWindow:          cfg.CacheScanWindow,
		TTL:                 time.Duration(cfg.CacheTTLDays) * 24 * time.Hour,
		PurgeQueueName:      cfg.PurgeQueueName,
	}, nil, logger)
	visionSvc := service.NewVisionService(cfg.VisionServiceBaseURL, visionAPIKey, time.Duration(cfg.VisionRequestTimeoutSec)*time.Second)
	adRewardSvc := service.NewAdRewardService(adWatchRepo, usageSvc, pubSubPublisher, cfg.AdRewardAuditTopic, logger)
	replacementSvc := service.NewReplacementService(replacementRepo, subscriptionSvc, cfg.MealReplacementAdThreshold, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, subscriptionSvc, logger)
	dlqSvc := service.NewDLQService(dlqRepo)

	// 9. Handlers.
	analysisHandler := handler.NewAnalysisHandler(cacheSvc, visionSvc, usageSvc, validate, logger)
	usageHandler := handler.NewUsageHandler(usageSvc, logger)
	adRewardHandler := handler.NewAdRewardHandler(adRewardSvc, validate, logger)
	replacementHandler := handler.NewReplacementHandler(replacementSvc, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(stripeSvc, subscriptionSvc, validate, logger)
	dlqHandler := handler.NewDLQHandler(dlqSvc, logger)

	// 10. Middleware.
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)
	isLocalDev := cfg.PubSubEmulatorHost != ""
	postbackAuthMiddleware := middleware.PubSubAuthMiddleware(isLocalDev, cfg.AdPostbackEndpointURL, cfg.PubSubPushServiceAccountEmail, logger)
	dlqAuthMiddleware := middleware.PubSubAuthMiddleware(isLocalDev, cfg.DLQEndpointURL, cfg.PubSubPushServiceAccountEmail, logger)

	// 11. Routes.
	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	analysisHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	usageHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	adRewardHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	adRewardHandler.RegisterPushRoutes(apiV1Mux, postbackAuthMiddleware)
	replacementHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	subscriptionHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	dlqHandler.RegisterRoutes(apiV1Mux, dlqAuthMiddleware)

	// Stripe authenticates webhooks by signature, not by bearer token.
	apiV1Mux.HandleFunc("/webhooks/stripe", stripeSvc.HandleWebhook)

	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Redirect root-level requests to /v1/{path}, old client builds used
	// unversioned paths.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/healthz" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusMovedPermanently)
	})

	// 12. CORS.
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
