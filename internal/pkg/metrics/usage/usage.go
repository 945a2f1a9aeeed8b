package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spoqen/spoqen/internal/pkg/cache"
)

const minutesKeyPrefix = "calls:counters:minutes"

// monthKey scopes the usage hash to a billing month so counters reset
// naturally without a cleanup job.
func monthKey(t time.Time) string {
	return fmt.Sprintf("%s:%s", minutesKeyPrefix, t.UTC().Format("2006-01"))
}

// AddCallMinutes increments the user's consumed minutes for the current
// month. Seconds are rounded up; a 30 second call still consumes a minute.
func AddCallMinutes(userID string, durationSecs int) error {
	if durationSecs <= 0 {
		return nil
	}
	minutes := (durationSecs + 59) / 60
	ctx := context.Background()
	key := monthKey(time.Now())
	pipe := cache.GetClient().TxPipeline()
	pipe.HIncrBy(ctx, key, userID, int64(minutes))
	// Keep the hash around one full month past its billing period.
	pipe.Expire(ctx, key, 62*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// GetUsedMinutes returns the user's consumed minutes for the current month.
// A missing counter reads as zero.
func GetUsedMinutes(userID string) (int, error) {
	ctx := context.Background()
	val, err := cache.GetClient().HGet(ctx, monthKey(time.Now()), userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	minutes, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	return minutes, nil
}
