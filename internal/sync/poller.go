package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dconnect/courier/internal/apperr"
)

// JobState represents the current state of a background job.
type JobState int

const (
	JobIdle JobState = iota
	JobRunning
	JobError
)

// JobStatus holds the state of a single job.
type JobStatus struct {
	Name    string
	State   JobState
	LastRun time.Time
	Error   error
}

// ResultMsg is a tea.Msg sent when a job run completes.
type ResultMsg struct {
	Job   string
	Value any
	Error error

	// AuthError is set when the backend rejected the session. The session
	// has already been invalidated by then.
	AuthError bool
}

// fetchTimeout is the maximum time allowed for a single job run.
const fetchTimeout = 30 * time.Second

// Job is a unit of background refresh work.
type Job struct {
	Name string

	// Interval between runs. Zero means the job only runs when triggered.
	Interval time.Duration

	// RunOnStart runs the job immediately when the poller starts.
	RunOnStart bool

	Run func(ctx context.Context) (any, error)
}

// Poller runs registered jobs in the background until stopped.
type Poller struct {
	logger   *slog.Logger
	jobs     []Job
	statuses map[string]*JobStatus
	triggers map[string]chan struct{}
	resultCh chan ResultMsg
	stopCh   chan struct{}
	mu       gosync.Mutex
	running  bool
}

// New creates a new Poller.
func New(logger *slog.Logger) *Poller {
	return &Poller{
		logger:   logger,
		statuses: make(map[string]*JobStatus),
		triggers: make(map[string]chan struct{}),
		resultCh: make(chan ResultMsg, 16),
	}
}

// Register adds a job. Jobs registered after Start run from the next Start.
func (p *Poller) Register(job Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobs = append(p.jobs, job)
	p.statuses[job.Name] = &JobStatus{Name: job.Name, State: JobIdle}
	p.triggers[job.Name] = make(chan struct{}, 1)
}

// Start returns a tea.Cmd that starts one goroutine per job and subscribes
// to results. Starting a running poller returns nil.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	jobs := make([]Job, len(p.jobs))
	copy(jobs, p.jobs)
	stopCh := p.stopCh
	p.mu.Unlock()

	for _, job := range jobs {
		go p.runJob(job, stopCh)
	}

	return p.waitForResult()
}

// Stop halts all job goroutines. In-flight runs finish but their results
// are dropped.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Trigger asks a job to run now. A trigger for a job that already has one
// pending is coalesced.
func (p *Poller) Trigger(name string) tea.Cmd {
	p.mu.Lock()
	ch, ok := p.triggers[name]
	p.mu.Unlock()

	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Statuses returns the current status of all registered jobs.
func (p *Poller) Statuses() []JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]JobStatus, 0, len(p.jobs))
	for _, j := range p.jobs {
		statuses = append(statuses, *p.statuses[j.Name])
	}
	return statuses
}

// runJob runs the loop for a single job.
func (p *Poller) runJob(job Job, stopCh <-chan struct{}) {
	p.mu.Lock()
	trigger := p.triggers[job.Name]
	p.mu.Unlock()

	var tick <-chan time.Time
	if job.Interval > 0 {
		ticker := time.NewTicker(job.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	if job.RunOnStart {
		p.execute(job, stopCh)
	}

	for {
		select {
		case <-stopCh:
			return
		case <-tick:
			p.execute(job, stopCh)
		case <-trigger:
			p.execute(job, stopCh)
		}
	}
}

// execute performs one run and publishes its result.
func (p *Poller) execute(job Job, stopCh <-chan struct{}) {
	p.setStatus(job.Name, JobRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	value, err := job.Run(ctx)

	select {
	case <-stopCh:
		return
	default:
	}

	if err != nil {
		p.setStatus(job.Name, JobError, err)
		p.logger.Debug("background job failed",
			slog.String("job", job.Name),
			slog.Any("error", err),
		)
		p.sendResult(ResultMsg{Job: job.Name, Error: err, AuthError: apperr.IsAuth(err)})
		return
	}

	p.setStatus(job.Name, JobIdle, nil)
	p.sendResult(ResultMsg{Job: job.Name, Value: value})
}

// setStatus updates the status of a job.
func (p *Poller) setStatus(name string, state JobState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == JobIdle && err == nil {
		status.LastRun = time.Now()
	}
}

// sendResult sends a ResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg ResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next job result.
// This should be called after processing a ResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
