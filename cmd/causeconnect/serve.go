package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"causeconnect/internal/auth"
	"causeconnect/internal/db"
	"causeconnect/internal/logocheck"
	"causeconnect/internal/mailer"
	"causeconnect/internal/metrics"
	"causeconnect/internal/payment"
	"causeconnect/internal/server"
	"causeconnect/internal/service"
	"causeconnect/internal/storage"
	"causeconnect/internal/store"
	"causeconnect/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := loadServeConfig(cCtx.String("env-prefix"))
	if err != nil {
		return err
	}

	logger := newLogger(config)
	m := metrics.Registry(config.MetricsNamespace)

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := store.NewUserRepository(pool)
	causeRepo := store.NewCauseRepository(pool)
	reviewRepo := store.NewLogoReviewRepository(pool)
	claimRepo := store.NewClaimRepository(pool)
	waitlistRepo := store.NewWaitlistRepository(pool)
	orderRepo := store.NewOrderRepository(pool)

	mail, err := mailer.New(config, logger, m)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokens(config.JWTSecret, config.AccessTokenTTL, config.RefreshTokenTTL)
	if err != nil {
		return err
	}

	var limiter auth.Limiter = auth.NoopLimiter{}
	if config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		limiter = auth.NewRedisLimiter(rdb, config.OTPRequestLimit, config.OTPRequestWindow)
	} else {
		logger.Warn("REDIS_ADDR not set, otp requests are not rate limited")
	}

	uploads, serverOpts, err := buildStorage(ctx, config)
	if err != nil {
		return err
	}

	admins, err := buildAdmins(ctx, config)
	if err != nil {
		return err
	}
	if admins == nil {
		logger.Warn("cognito not configured, admin login is disabled")
	}

	var gateway payment.Gateway = payment.Offline{}
	if config.StripeSecretKey != "" {
		gateway = payment.NewStripe(config.StripeSecretKey, config.StripeWebhookSecret, m)
	}
	logger.WithField("gateway", gateway.Name()).Info("payment gateway configured")

	common := service.Common{Logger: logger, Metrics: m}
	logoReviews := service.NewLogoReviews(common, reviewRepo, causeRepo, logocheck.New(uploads, config.ExternalCallTimeout(), m).AllowHosts(config.LogoFetchHosts...))
	sponsorships := service.NewSponsorships(common, causeRepo, logoReviews, config.SponsorshipAutoApprovePaid)

	services := server.Services{
		Auth:         service.NewAuth(common, userRepo, tokens, mail, limiter, admins),
		Causes:       service.NewCauses(common, causeRepo),
		Sponsorships: sponsorships,
		LogoReviews:  logoReviews,
		Claims:       service.NewClaims(common, claimRepo, mail),
		Waitlist:     service.NewWaitlist(common, waitlistRepo, causeRepo, mail, config.FrontendURL),
		Payments: service.NewPayments(common, orderRepo, causeRepo, sponsorships, gateway, payment.NewSigner(config.PaymentSigningSecret), mail, service.PaymentsConfig{
			Currency:  config.DefaultCurrency,
			UnitPrice: config.ToteUnitPrice,
		}),
		Notifications: service.NewNotifications(common, mail),
		Claimers:      service.NewClaimers(common, causeRepo, claimRepo),
	}

	srv, err := server.New(config, logger, m, services, uploads, serverOpts...)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}

func buildStorage(ctx context.Context, config *types.Config) (storage.Store, []server.Option, error) {
	if config.StorageDriver == "s3" {
		awsConfig, err := loadAWSConfig(ctx)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewS3Storage(s3.NewFromConfig(awsConfig), config.S3BucketName, config.S3PublicBaseURL), nil, nil
	}

	local, err := storage.NewLocalStorage(config.UploadsDir)
	if err != nil {
		return nil, nil, err
	}
	return local, []server.Option{server.WithLocalUploads(local.Root())}, nil
}

// buildAdmins returns nil when no Cognito pool is configured.
func buildAdmins(ctx context.Context, config *types.Config) (service.AdminAuthenticator, error) {
	if !config.AdminLoginEnabled() {
		return nil, nil
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	jwkCache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jwk cache: %w", err)
	}

	jwksURL := auth.JWKSURL(config.CognitoIssuerURL)
	if err := jwkCache.Register(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to register cognito jwks with cache: %w", err)
	}

	return auth.NewCognitoAdmins(
		cognitoidentityprovider.NewFromConfig(awsConfig),
		jwkCache,
		config.CognitoClientID,
		config.CognitoIssuerURL,
	), nil
}

