package as3client

import (
	"context"
	"net/http"
	"time"

	"github.com/sapcc/f5agent/internal/observability"
)

// orphanGraceFactor bounds how long a poll loop may outlive its
// caller's wait. The caller's timeout aborts only the wait; the
// in-flight loop keeps polling up to this multiple of the async
// timeout before giving up, so an abandoned task cannot pin the worker
// forever.
const orphanGraceFactor = 2

// pollJob is one queued completion wait.
type pollJob struct {
	taskID string
	result chan pollResult
}

// pollResult is the terminal outcome of a poll loop.
type pollResult struct {
	resp *Response
	err  error
}

// taskPoller serializes task polling on a single worker goroutine: at
// most one poll loop is in flight per client, further submissions
// queue behind it.
type taskPoller struct {
	client *Client
	jobs   chan pollJob
	stopCh chan struct{}
	done   chan struct{}
}

// init wires the poller to its client and starts the worker.
func (p *taskPoller) init(c *Client) {
	p.client = c
	p.jobs = make(chan pollJob)
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	go p.run()
}

// stop terminates the worker and waits for it to exit.
func (p *taskPoller) stop() {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	<-p.done
}

// await queues a completion wait for taskID and blocks the caller
// until the task is terminal, the async timeout expires, or the
// context is canceled. The timeout covers the whole wait, including
// time spent queued behind an in-flight poll.
func (p *taskPoller) await(ctx context.Context, taskID string) (*Response, error) {
	job := pollJob{
		taskID: taskID,
		result: make(chan pollResult, 1),
	}

	timeout := time.NewTimer(p.client.asyncTimeout)
	defer timeout.Stop()

	taskURL := redactURL(p.client.strategy.resolve(taskPathPrefix+taskID, classDeclaration))

	select {
	case p.jobs <- job:
	case <-timeout.C:
		return nil, NewClientError("post", taskURL, 0, ErrTaskTimeout)
	case <-p.stopCh:
		return nil, ErrClientClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-job.result:
		return res.resp, res.err
	case <-timeout.C:
		// The loop keeps polling in the background; see orphanGraceFactor.
		return nil, NewClientError("post", taskURL, 0, ErrTaskTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run is the worker loop.
func (p *taskPoller) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stopCh:
			return
		case job := <-p.jobs:
			p.poll(job)
		}
	}
}

// poll drives one task to a terminal state. The task is terminal once
// every sub-result carries a non-zero code; the poll is all-or-nothing
// across the whole batch.
func (p *taskPoller) poll(job pollJob) {
	rawURL := p.client.strategy.resolve(taskPathPrefix+job.taskID, classDeclaration)
	logger := p.client.logger.With(observability.String("task", job.taskID))

	ticker := time.NewTicker(p.client.pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(orphanGraceFactor * p.client.asyncTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-p.stopCh:
			job.result <- pollResult{err: ErrClientClosed}
			return
		case <-deadline.C:
			logger.Warn("abandoning task poll, no terminal state within bound")
			job.result <- pollResult{err: NewClientError("poll", redactURL(rawURL), 0, ErrTaskTimeout)}
			return
		case <-ticker.C:
			taskPolls.Inc()

			resp, err := p.client.do(context.Background(), "poll", http.MethodGet, rawURL, nil)
			if err != nil {
				job.result <- pollResult{err: err}
				return
			}
			if !resp.OK() {
				job.result <- pollResult{resp: resp}
				return
			}

			var task Task
			if err := resp.JSON(&task); err != nil {
				job.result <- pollResult{err: NewClientError("poll", redactURL(rawURL), resp.StatusCode, err)}
				return
			}

			if task.Terminal() {
				logger.Debug("task reached terminal state",
					observability.Int("results", len(task.Results)),
				)
				job.result <- pollResult{resp: resp}
				return
			}

			logger.Debug("task still pending")
		}
	}
}
