package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/psi-backoffice/psi/internal/sales/orders"
	"github.com/psi-backoffice/psi/jobs"
)

// Enqueuer submits tasks to the queue.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Inspector reads queue state.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Reconciler runs a reconciliation pass in-process.
type Reconciler interface {
	Run(ctx context.Context, limit int) (orders.ReconcileResult, error)
}

// JobsCLI wraps manual management helpers for background jobs.
type JobsCLI struct {
	Client     Enqueuer
	Inspector  Inspector
	Reconciler Reconciler
	Stdout     io.Writer
	Stderr     io.Writer
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
}

const jobsUsage = `usage: psi jobs <command> [flags]

commands:
  enqueue <job>   queue a job for the worker (jobs: reconcile)
  reconcile       repair orders missing derived records now
  stats           print the default queue counters`

// Run dispatches a jobs subcommand and returns the process exit code.
func (c *JobsCLI) Run(ctx context.Context, args []string) int {
	c.defaults()
	if len(args) == 0 {
		_, _ = fmt.Fprintln(c.Stderr, jobsUsage)
		return 2
	}
	switch args[0] {
	case "enqueue":
		return c.enqueue(ctx, args[1:])
	case "reconcile":
		return c.reconcile(ctx, args[1:])
	case "stats":
		return c.stats(ctx, args[1:])
	default:
		_, _ = fmt.Fprintf(c.Stderr, "jobs: unknown command %q\n%s\n", args[0], jobsUsage)
		return 2
	}
}

func (c *JobsCLI) enqueue(ctx context.Context, args []string) int {
	fs := c.flagSet("enqueue")
	limit := fs.Int("limit", jobs.DefaultReconcileLimit, "orders per pass")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(c.Stderr, "jobs enqueue: exactly one job name is required")
		return 2
	}
	info, err := c.Trigger(ctx, fs.Arg(0), *limit)
	if err != nil {
		_, _ = fmt.Fprintf(c.Stderr, "jobs enqueue: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(c.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, limit int) (*asynq.TaskInfo, error) {
	if c == nil || c.Client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case "reconcile", jobs.TaskCascadeReconcile:
		task, err = jobs.NewCascadeReconcileTask(limit)
	default:
		return nil, fmt.Errorf("unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.Client.EnqueueContext(ctx, task)
}

func (c *JobsCLI) reconcile(ctx context.Context, args []string) int {
	fs := c.flagSet("reconcile")
	limit := fs.Int("limit", jobs.DefaultReconcileLimit, "orders per pass")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.Reconciler == nil {
		_, _ = fmt.Fprintln(c.Stderr, "jobs reconcile: reconciler not configured")
		return 1
	}
	res, err := c.Reconciler.Run(ctx, *limit)
	if *asJSON {
		_ = json.NewEncoder(c.Stdout).Encode(struct {
			Scanned  int `json:"scanned"`
			Repaired int `json:"repaired"`
			Failed   int `json:"failed"`
		}{res.Scanned, res.Repaired, res.Failed})
	} else {
		_, _ = fmt.Fprintf(c.Stdout, "scanned=%d repaired=%d failed=%d\n", res.Scanned, res.Repaired, res.Failed)
	}
	if err != nil {
		_, _ = fmt.Fprintf(c.Stderr, "jobs reconcile: %v\n", err)
		return 1
	}
	return 0
}

func (c *JobsCLI) stats(ctx context.Context, args []string) int {
	fs := c.flagSet("stats")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(c.Stderr, "jobs stats: %v\n", err)
		return 1
	}
	_ = json.NewEncoder(c.Stdout).Encode(stats)
	return 0
}

// InspectQueue reports the counters of the default queue.
func (c *JobsCLI) InspectQueue(_ context.Context) (QueueStats, error) {
	if c == nil || c.Inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.Inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Failed = info.Failed
	}
	return stats, nil
}

func (c *JobsCLI) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("jobs "+name, flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	return fs
}

func (c *JobsCLI) defaults() {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
}
