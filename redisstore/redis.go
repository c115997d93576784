// Package redisstore keeps wearable step samples in a Redis sorted set
// scored by their timestamp in Unix milliseconds.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"steptracker/motion"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const samplesKey = "steptracker:samples"

type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// member encodes a sample as "<steps>|<id>". The id keeps equal samples at
// the same instant from collapsing into one set member.
func member(steps int) string {
	return strconv.Itoa(steps) + "|" + uuid.New().String()
}

func parseMember(m string) (int, error) {
	steps, _, ok := strings.Cut(m, "|")
	if !ok {
		return 0, fmt.Errorf("malformed sample member %q", m)
	}
	return strconv.Atoi(steps)
}

func (s *Store) AppendSamples(ctx context.Context, samples []motion.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(samples))
	for _, smp := range samples {
		if smp.Steps < 0 {
			return fmt.Errorf("negative step count %d at %s", smp.Steps, smp.RecordedAt.Format(time.RFC3339))
		}
		zs = append(zs, redis.Z{Score: float64(smp.RecordedAt.UnixMilli()), Member: member(smp.Steps)})
	}
	return s.client.ZAdd(ctx, samplesKey, zs...).Err()
}

// SumSteps returns the total of samples recorded in [from, to).
func (s *Store) SumSteps(ctx context.Context, from, to time.Time) (int, error) {
	members, err := s.client.ZRangeByScore(ctx, samplesKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: "(" + strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range members {
		steps, err := parseMember(m)
		if err != nil {
			return 0, err
		}
		total += steps
	}
	return total, nil
}

func (s *Store) DeleteStepSamples(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, samplesKey).Result()
	if err != nil {
		return 0, err
	}
	return n, s.client.Del(ctx, samplesKey).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
