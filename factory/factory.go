package factory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/internal/source"
	"github.com/joyfill/joydoc/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from the logging section.
func NewLogger(cfg joydoc.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, joydoc.NewConfigError("logging.level", err.Error())
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Format
	if cfg.Format == "console" {
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// NewValidatorWithConfig creates a Validator from the validation and logging
// sections. Extra options, such as an observer, are applied last.
//
// Usage:
//
//	cfg, err := joydoc.LoadConfigWithEnvOverrides(path)
//	if err != nil {
//	    // handle error
//	}
//	v := factory.NewValidatorWithConfig(cfg, logger, joydoc.WithObserver(recorder))
//	result := v.ValidateDocument(doc)
func NewValidatorWithConfig(cfg *joydoc.Config, logger *zap.Logger, opts ...joydoc.Option) *joydoc.Validator {
	if cfg == nil {
		cfg = joydoc.DefaultConfig()
	}
	if logger == nil {
		logger = zap.L()
	}
	all := append([]joydoc.Option{
		joydoc.WithConfig(cfg.Validation),
		joydoc.WithLogger(logger, cfg.Logging.LogValidations),
	}, opts...)
	return joydoc.NewValidator(all...)
}

// authTokenFunc generates an IAM auth token for the store endpoint.
var authTokenFunc = func(ctx context.Context, endpoint, region string, creds aws.CredentialsProvider) (string, error) {
	return auth.GenerateDbConnectAuthToken(ctx, endpoint, region, creds)
}

// NewReportStoreWithConfig connects to the report database and returns the
// store together with the pool, which the caller must close. With
// store.useIAM the password is replaced by a generated Aurora DSQL token.
func NewReportStoreWithConfig(ctx context.Context, cfg *joydoc.Config, logger *zap.Logger) (*store.ReportStore, *pgxpool.Pool, error) {
	if cfg == nil || !cfg.Store.Enabled {
		return nil, nil, joydoc.NewConfigError("store.enabled", "the report store is not enabled")
	}
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()

	password := cfg.Store.Password
	if cfg.Store.UseIAM {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Store.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		endpoint := fmt.Sprintf("%s:%d", cfg.Store.Host, cfg.Store.Port)
		token, err := authTokenFunc(ctx, endpoint, cfg.Store.Region, awsCfg.Credentials)
		if err != nil || token == "" {
			sugar.Warnw("failed to generate IAM auth token; falling back to the configured password", "err", err)
		} else {
			password = token
			sugar.Infow("generated IAM auth token for the report store", "endpoint", endpoint)
		}
	}

	pool, err := store.NewPool(ctx, cfg.Store, password)
	if err != nil {
		return nil, nil, err
	}
	reports, err := store.NewReportStore(pool, cfg.Store.Table, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if cfg.Store.BreakerThreshold > 0 {
		reports.WithBreaker(store.NewBreaker(cfg.Store.BreakerThreshold, cfg.Store.BreakerWindow, cfg.Store.BreakerOpenDuration))
	}
	return reports, pool, nil
}

// NewSourceWithConfig creates a document source with an S3 client built from
// the source section.
func NewSourceWithConfig(ctx context.Context, cfg *joydoc.Config, logger *zap.Logger) (*source.Source, error) {
	if cfg == nil {
		cfg = joydoc.DefaultConfig()
	}
	client, err := source.NewS3Client(ctx, cfg.Source.S3)
	if err != nil {
		return nil, err
	}
	return source.New(cfg.Source, client, logger), nil
}

// NewPublisherWithConfig creates an S3 publisher from the source section.
func NewPublisherWithConfig(ctx context.Context, cfg *joydoc.Config) (*source.Publisher, error) {
	if cfg == nil {
		cfg = joydoc.DefaultConfig()
	}
	client, err := source.NewS3Client(ctx, cfg.Source.S3)
	if err != nil {
		return nil, err
	}
	return source.NewPublisher(client), nil
}
