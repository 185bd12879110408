package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/jobs"
)

// Enqueuer is the slice of asynq.Client used by the CLI.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Inspector is the slice of asynq.Inspector used by the CLI.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers against the queue's Redis.
func NewJobsCLI(redisOpts asynq.RedisClientOpt) (*JobsCLI, error) {
	if redisOpts.Addr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	client := asynq.NewClient(redisOpts)
	inspector := asynq.NewInspector(redisOpts)
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{inspector, client}}, nil
}

// NewJobsCLIWith builds the helpers over existing clients.
func NewJobsCLIWith(client Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	for _, closer := range c.closers {
		if closeErr := closer.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerParams tunes a manually triggered job.
type TriggerParams struct {
	AsOf      time.Time
	BatchSize int
	Retention time.Duration
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, params TriggerParams) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskEstimatesExpire:
		task, err = jobs.NewEstimatesExpireTask(jobs.EstimatesExpirePayload{AsOf: params.AsOf})
	case jobs.TaskLedgerIntegrity:
		task, err = jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{BatchSize: params.BatchSize})
	case jobs.TaskIdempotencyCleanup:
		task, err = jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{Retention: params.Retention})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// JobsOptions defines the arguments of the jobs command.
type JobsOptions struct {
	Action     string
	Job        string
	Params     TriggerParams
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// JobsCommand runs "jobs trigger <name>" or "jobs stats" and returns the exit code.
func (c *JobsCLI) JobsCommand(ctx context.Context, opts JobsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	switch opts.Action {
	case "trigger":
		if opts.Job == "" {
			_, _ = fmt.Fprintln(opts.Stderr, "jobs trigger: job name is required")
			return 1
		}
		info, err := c.Trigger(ctx, opts.Job, opts.Params)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		if opts.JSONOutput {
			_ = json.NewEncoder(opts.Stdout).Encode(map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue})
			return 0
		}
		_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		if opts.JSONOutput {
			if err := json.NewEncoder(opts.Stdout).Encode(stats); err != nil {
				_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: encode json: %v\n", err)
				return 1
			}
			return 0
		}
		_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return 0
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "jobs: unknown action %q (expected trigger or stats)\n", opts.Action)
		return 2
	}
}
