package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rirranges/internal/model"
)

type RedisRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisRepository(client *redis.Client, logger *zap.Logger) *RedisRepository {
	return &RedisRepository{
		client: client,
		logger: logger,
	}
}

func rangesKey(family model.Family, country string) string {
	return fmt.Sprintf("ranges:%s:%s", family, country)
}

// Publish stores the encoded list under ranges:{family}:{CC} without expiry.
func (r *RedisRepository) Publish(ctx context.Context, country string, family model.Family, cidrs []string) error {
	data, err := model.EncodeRangeList(cidrs)
	if err != nil {
		return fmt.Errorf("encoding ranges: %w", err)
	}

	if err := r.client.Set(ctx, rangesKey(family, country), data, 0).Err(); err != nil {
		r.logger.Error("failed to store ranges in cache",
			zap.String("country", country),
			zap.String("family", string(family)),
			zap.Error(err))
		return err
	}
	return nil
}

func (r *RedisRepository) SetCountry(ctx context.Context, ip, countryCode string) error {
	err := r.client.Set(ctx, "ip:"+ip, countryCode, 24*time.Hour).Err()
	if err != nil {
		r.logger.Error("failed to set country in cache",
			zap.String("ip", ip),
			zap.Error(err))
	}
	return err
}

func (r *RedisRepository) GetCountry(ctx context.Context, ip string) (string, error) {
	countryCode, err := r.client.Get(ctx, "ip:"+ip).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		r.logger.Error("failed to get country from cache",
			zap.String("ip", ip),
			zap.Error(err))
		return "", err
	}
	return countryCode, nil
}
