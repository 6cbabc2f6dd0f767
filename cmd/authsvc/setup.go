package main

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/authsvc/adapter"
	"github.com/authplatform/auth-service/internal/authsvc/app"
	"github.com/authplatform/auth-service/internal/authsvc/port"
	"github.com/authplatform/auth-service/internal/config"
	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/dynamo"
	"github.com/authplatform/auth-service/internal/ephemeral"
	"github.com/authplatform/auth-service/internal/redis"
	"github.com/authplatform/auth-service/internal/server"
	"github.com/authplatform/auth-service/internal/userdirectory"
)

// Table names match the LocalStack init script (scripts/localstack-init.sh).
const (
	fingerprintsTable = "fingerprints"
	sessionsTable     = "sessions"
	otpConfigTable    = "otp_config"
)

// setup is the auth service composition root. It creates infrastructure
// clients, adapters, the orchestration layer, and mounts the HTTP handler.
func setup(ctx context.Context, deps server.SetupDeps) (func(context.Context) error, error) {
	cfg := deps.Config
	logger := deps.Logger
	clock := domain.RealClock{}

	// 1. Infrastructure clients.
	dynamoClient, err := dynamo.NewClient(ctx, dynamo.Config{
		Endpoint: cfg.DynamoDB.Endpoint,
		Region:   cfg.AWS.Region,
		Timeout:  cfg.DynamoDB.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("authsvc setup: create dynamo client: %w", err)
	}

	redisClient := redis.NewClient(redis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})

	// 2. Storage adapters (C5/C6/C7 ports, C2's Redis-backed TTL store).
	fingerprintStore := adapter.NewFingerprintStore(dynamoClient.DB, fingerprintsTable, clock)
	sessionStore := adapter.NewSessionStore(dynamoClient.DB, sessionsTable, clock)
	otpConfigStore := adapter.NewOTPConfigStore(dynamoClient.DB, otpConfigTable, clock)
	transactor := adapter.NewTransactor(dynamoClient.DB, fingerprintsTable, sessionsTable, clock)
	rateLimiter := adapter.NewRateLimiter(redisClient.RDB)
	revocationStore := adapter.NewRevocationStore(redisClient.RDB)
	ephemeralStore := ephemeral.NewStore(redisClient.RDB)

	// 3. Key store + email provider + event publisher (environment-dependent).
	keyStore, err := createKeyStore(ctx, cfg, clock)
	if err != nil {
		return nil, fmt.Errorf("authsvc setup: create key store: %w", err)
	}
	emailProvider, err := createEmailProvider(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("authsvc setup: create email provider: %w", err)
	}
	eventPublisher, err := createEventPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("authsvc setup: create event publisher: %w", err)
	}

	otpSecretKey, err := decodeOTPSecretKey(cfg.JWT.OTPSecretKey)
	if err != nil {
		return nil, fmt.Errorf("authsvc setup: %w", err)
	}

	// 4. Token minters/validators (C1), one per token kind.
	accessMinter := auth.NewAccessMinter(auth.MinterConfig{
		KeyStore: keyStore, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience,
		TTL: cfg.JWT.AccessTTL, Clock: clock,
	})
	sessionMinter := auth.NewSessionMinter(auth.MinterConfig{
		KeyStore: keyStore, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience,
		TTL: cfg.JWT.SessionTTL, Clock: clock,
	})
	serviceMinter := auth.NewServiceMinter(auth.MinterConfig{
		KeyStore: keyStore, Issuer: cfg.JWT.Issuer, Audience: "internal-services",
		TTL: cfg.JWT.ServiceTTL, Clock: clock,
	}, "auth-service")

	accessValidator := auth.NewValidator(auth.ValidatorConfig{
		KeyStore: keyStore, Kind: auth.TokenKindAccess, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience, Clock: clock,
	})
	sessionValidator := auth.NewValidator(auth.ValidatorConfig{
		KeyStore: keyStore, Kind: auth.TokenKindSession, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience, Clock: clock,
	})
	serviceValidator := auth.NewValidator(auth.ValidatorConfig{
		KeyStore: keyStore, Kind: auth.TokenKindService, Issuer: cfg.JWT.Issuer, Audience: "internal-services", Clock: clock,
	})

	// 5. C4's remote user-profile client, authenticating outbound calls
	// with its own freshly minted service token.
	userDirectoryClient := userdirectory.New(userdirectory.Config{
		BaseURL: cfg.UserDirectory.BaseURL,
		Minter:  serviceTokenMinter{serviceMinter},
	})

	// 6. Orchestration layer.
	authSvc := app.NewAuthService(app.AuthServiceConfig{
		Fingerprints:           fingerprintStore,
		Sessions:               sessionStore,
		OTPConfigs:             otpConfigStore,
		Users:                  userDirectoryAdapter{userDirectoryClient},
		Transactor:             transactor,
		Ephemeral:              ephemeralStore,
		RateLimiter:            rateLimiter,
		Revocation:             revocationStore,
		Events:                 eventPublisher,
		Email:                  emailProvider,
		AccessMinter:           accessMinter,
		SessionMinter:          sessionMinter,
		AccessValidator:        accessValidator,
		SessionValidator:       sessionValidator,
		OTPSecretKey:           otpSecretKey,
		WalletServiceUserAgent: "Wallet-Service/1.0",
		Clock:                  clock,
		Pepper:                 []byte(cfg.Password.Pepper),
		Logger:                 logger,
	})

	// 7. HTTP handler.
	handler := port.NewAuthHandler(port.Config{
		Service:          authSvc,
		ServiceValidator: serviceValidator,
		Logger:           logger,
	})
	handler.Register(deps.HTTPMux)

	logger.InfoContext(ctx, "auth service initialized")

	cleanup := func(context.Context) error {
		authSvc.Wait()
		return redisClient.Close()
	}

	return cleanup, nil
}

// serviceTokenMinter adapts *auth.ServiceMinter (which returns a
// MintResult) to userdirectory.ServiceTokenMinter (which wants just the
// signed token string).
type serviceTokenMinter struct {
	minter *auth.ServiceMinter
}

func (m serviceTokenMinter) Mint() (string, error) {
	result, err := m.minter.Mint()
	if err != nil {
		return "", err
	}
	return result.Token, nil
}

// userDirectoryAdapter adapts *userdirectory.Client to app.UserDirectory.
// userdirectory.User/NewUser are field-identical to app.User/app.NewUser,
// so the conversions below are plain Go struct conversions.
type userDirectoryAdapter struct {
	client *userdirectory.Client
}

func (a userDirectoryAdapter) CheckExists(ctx context.Context, emailOrUsername string) (bool, error) {
	return a.client.CheckExists(ctx, emailOrUsername)
}

func (a userDirectoryAdapter) Create(ctx context.Context, u app.NewUser) (*app.User, error) {
	user, err := a.client.Create(ctx, userdirectory.NewUser(u))
	if err != nil {
		return nil, err
	}
	out := app.User(*user)
	return &out, nil
}

func (a userDirectoryAdapter) ChangePassword(ctx context.Context, userID, newHash string) error {
	return a.client.ChangePassword(ctx, userID, newHash)
}

func (a userDirectoryAdapter) GetByEmailOrUsername(ctx context.Context, emailOrUsername string) (*app.User, error) {
	user, err := a.client.GetByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		return nil, err
	}
	out := app.User(*user)
	return &out, nil
}

func (a userDirectoryAdapter) GetByUserID(ctx context.Context, userID string) (*app.User, error) {
	user, err := a.client.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := app.User(*user)
	return &out, nil
}

func (a userDirectoryAdapter) GetWithPasswordByUserID(ctx context.Context, userID string) (*app.User, error) {
	user, err := a.client.GetWithPasswordByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := app.User(*user)
	return &out, nil
}

func (a userDirectoryAdapter) GetWithPasswordByEmailOrUsername(ctx context.Context, emailOrUsername string) (*app.User, error) {
	user, err := a.client.GetWithPasswordByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		return nil, err
	}
	out := app.User(*user)
	return &out, nil
}

func (a userDirectoryAdapter) UpdateLastLogin(ctx context.Context, userID string) error {
	return a.client.UpdateLastLogin(ctx, userID)
}

// createKeyStore returns the appropriate HMAC key store for the
// environment. Local: a static in-memory store from the configured
// (dev-default) secrets. Production: AWS Secrets Manager, eagerly loaded.
func createKeyStore(ctx context.Context, cfg *config.Config, clock domain.Clock) (auth.KeyStore, error) {
	if cfg.IsLocal() {
		return auth.NewStaticKeyStore(map[auth.TokenKind]domain.SecretBytes{
			auth.TokenKindAccess:  secretOrDevDefault(cfg.JWT.AccessSecret, "local-access-secret-32-bytes-ok"),
			auth.TokenKindSession: secretOrDevDefault(cfg.JWT.SessionSecret, "local-session-secret-32-bytes-ok"),
			auth.TokenKindService: secretOrDevDefault(cfg.JWT.ServiceSecret, "local-service-secret-32-bytes-ok"),
		}), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	smClient := secretsmanager.NewFromConfig(awsCfg)
	return adapter.NewAWSKeyStore(ctx, smClient, clock)
}

func secretOrDevDefault(secret, devDefault string) domain.SecretBytes {
	if secret == "" {
		return domain.SecretBytes(devDefault)
	}
	return domain.SecretBytes(secret)
}

// createEmailProvider returns the appropriate EmailProvider for the
// environment. Local: logs codes instead of sending real email.
// Production: Amazon SES.
func createEmailProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.EmailProvider, error) {
	if cfg.IsLocal() {
		return adapter.NewLogEmailProvider(logger), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	sesClient := ses.NewFromConfig(awsCfg)
	return adapter.NewSESEmailProvider(sesClient, cfg.Email.SenderAddress), nil
}

// createEventPublisher returns the appropriate EventPublisher for the
// environment. Local: logs events instead of publishing to SNS.
// Production: Amazon SNS, one topic per event type named in §6.
func createEventPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app.EventPublisher, error) {
	if cfg.IsLocal() {
		return adapter.NewLogEventPublisher(logger), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	snsClient := sns.NewFromConfig(awsCfg)
	topics := map[string]string{
		"email_request":  cfg.Events.EmailRequestTopicARN,
		"user_created":   cfg.Events.UserCreatedTopicARN,
		"notification":   cfg.Events.NotificationTopicARN,
	}
	return adapter.NewEventPublisher(snsClient, topics, logger), nil
}

// decodeOTPSecretKey validates the configured OTP-encryption key is
// exactly 32 bytes, as internal/password's AES-256-GCM envelope requires.
func decodeOTPSecretKey(key string) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("jwt.otp_secret_key must be exactly 32 bytes, got %d", len(key))
	}
	return []byte(key), nil
}

