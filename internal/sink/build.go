package sink

import (
	"context"

	"github.com/BonelessWater/aura/internal/config"
	"go.uber.org/zap"
)

// FromConfig opens every sink enabled in cfg. It returns an empty Multi when none are.
// Sinks already opened are closed if a later one fails.
func FromConfig(ctx context.Context, cfg *config.SinksConfig, logger *zap.Logger) (Multi, error) {
	var out Multi
	fail := func(err error) (Multi, error) {
		_ = out.Close()
		return nil, err
	}
	if cfg.JSONLPath != "" {
		s, err := OpenJSONLFile(cfg.JSONLPath)
		if err != nil {
			return fail(err)
		}
		logger.Info("jsonl sink enabled", zap.String("path", cfg.JSONLPath))
		out = append(out, s)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		s, err := NewKafkaSink(&cfg.Kafka)
		if err != nil {
			return fail(err)
		}
		logger.Info("kafka sink enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
		out = append(out, s)
	}
	if cfg.S3.Bucket != "" {
		s, err := NewS3Sink(ctx, &cfg.S3)
		if err != nil {
			return fail(err)
		}
		logger.Info("s3 sink enabled", zap.String("bucket", cfg.S3.Bucket), zap.String("prefix", cfg.S3.Prefix))
		out = append(out, s)
	}
	return out, nil
}
