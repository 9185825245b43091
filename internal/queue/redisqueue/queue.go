package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/attendhub/internal/jobs"
	"github.com/redis/go-redis/v9"
)

var ErrJobNotFound = errors.New("job not found")

// Queue is a delayed job queue. Jobs live in a hash; a sorted set scored by
// run time holds what is waiting and another, scored by claim time, what is
// being processed. Exhausted jobs are pushed to a dead-letter list.
type Queue struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func New(rdb redis.UniversalClient, prefix string) *Queue {
	if prefix == "" {
		prefix = "attendhub:jobs"
	}
	return &Queue{rdb: rdb, prefix: prefix, now: time.Now}
}

func (q *Queue) dataKey() string       { return q.prefix + ":data" }
func (q *Queue) scheduledKey() string  { return q.prefix + ":scheduled" }
func (q *Queue) processingKey() string { return q.prefix + ":processing" }
func (q *Queue) deadKey() string       { return q.prefix + ":dead" }

func score(t time.Time) float64 { return float64(t.UnixMilli()) }

// claimScript moves the earliest due job from scheduled to processing and
// returns its body. Ids whose body vanished are dropped.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
  return false
end
local id = ids[1]
redis.call('ZREM', KEYS[1], id)
local data = redis.call('HGET', KEYS[3], id)
if not data then
  return false
end
redis.call('ZADD', KEYS[2], ARGV[1], id)
return data
`)

// requeueScript moves processing entries claimed before ARGV[1] back to
// scheduled, due immediately.
var requeueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[2], id)
end
return #ids
`)

func (q *Queue) Enqueue(ctx context.Context, j jobs.Job) error {
	if !j.Type.IsValid() {
		return jobs.ErrInvalidJobType
	}

	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.dataKey(), j.ID, b)
		p.ZAdd(ctx, q.scheduledKey(), redis.Z{Score: score(j.RunAt), Member: j.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", j.ID, err)
	}
	return nil
}

// ClaimNext returns the next due job, already counted as one more attempt.
// ErrJobNotFound means nothing is due.
func (q *Queue) ClaimNext(ctx context.Context) (jobs.Job, error) {
	now := q.now()

	raw, err := claimScript.Run(ctx, q.rdb,
		[]string{q.scheduledKey(), q.processingKey(), q.dataKey()},
		strconv.FormatInt(now.UnixMilli(), 10),
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return jobs.Job{}, ErrJobNotFound
		}
		return jobs.Job{}, fmt.Errorf("claim job: %w", err)
	}

	var j jobs.Job
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return jobs.Job{}, fmt.Errorf("decode job: %w", err)
	}

	j.Status = jobs.JobProcessing
	j.Attempts++
	j.UpdatedAt = now.UTC()

	if err := q.save(ctx, j); err != nil {
		return jobs.Job{}, err
	}
	return j, nil
}

func (q *Queue) MarkDone(ctx context.Context, id string) error {
	removed, err := q.rdb.ZRem(ctx, q.processingKey(), id).Result()
	if err != nil {
		return fmt.Errorf("mark done %s: %w", id, err)
	}
	if removed == 0 {
		return ErrJobNotFound
	}

	return q.rdb.HDel(ctx, q.dataKey(), id).Err()
}

// Reschedule puts a failed attempt back on the schedule at runAt.
func (q *Queue) Reschedule(ctx context.Context, j jobs.Job, runAt time.Time, errMsg string) error {
	j.Status = jobs.JobPending
	j.RunAt = runAt.UTC()
	j.LastError = &errMsg
	j.UpdatedAt = q.now().UTC()

	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.processingKey(), j.ID)
		p.HSet(ctx, q.dataKey(), j.ID, b)
		p.ZAdd(ctx, q.scheduledKey(), redis.Z{Score: score(j.RunAt), Member: j.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("reschedule job %s: %w", j.ID, err)
	}
	return nil
}

// MarkFailed moves a job to the dead-letter list.
func (q *Queue) MarkFailed(ctx context.Context, j jobs.Job, errMsg string) error {
	j.Status = jobs.JobFailed
	j.LastError = &errMsg
	j.UpdatedAt = q.now().UTC()

	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.processingKey(), j.ID)
		p.HDel(ctx, q.dataKey(), j.ID)
		p.LPush(ctx, q.deadKey(), b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("dead-letter job %s: %w", j.ID, err)
	}
	return nil
}

// RequeueStaleProcessing returns jobs claimed longer than lockTTL ago to the
// schedule, for workers that died mid-job.
func (q *Queue) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	now := q.now()
	cutoff := now.Add(-lockTTL)

	n, err := requeueScript.Run(ctx, q.rdb,
		[]string{q.processingKey(), q.scheduledKey()},
		strconv.FormatInt(cutoff.UnixMilli(), 10),
		strconv.FormatInt(now.UnixMilli(), 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("requeue stale: %w", err)
	}
	return n, nil
}

// Stats reports queue depths for the worker's health endpoint.
func (q *Queue) Stats(ctx context.Context) (map[string]int64, error) {
	var scheduled, processing, dead *redis.IntCmd

	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		scheduled = p.ZCard(ctx, q.scheduledKey())
		processing = p.ZCard(ctx, q.processingKey())
		dead = p.LLen(ctx, q.deadKey())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	return map[string]int64{
		"scheduled":  scheduled.Val(),
		"processing": processing.Val(),
		"dead":       dead.Val(),
	}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

func (q *Queue) save(ctx context.Context, j jobs.Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.HSet(ctx, q.dataKey(), j.ID, b).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}
