package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsguard/shellgate/internal/procexec"
)

// JobStatus is a background job's lifecycle state.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobTimeout   JobStatus = "timeout"
)

const (
	defaultMaxJobs = 20
	jobOutputCap   = 1 << 20 // 1 MiB sliding window
	jobRetention   = 1 * time.Hour
	sweepInterval  = 10 * time.Minute
)

// Job is a single background command invocation.
type Job struct {
	ID        string
	Shell     string
	Command   string
	StartTime time.Time
	EndTime   time.Time
	ExitCode  int
	PID       int

	mu     sync.Mutex
	status JobStatus
	output slidingBuffer
	cancel context.CancelFunc
}

// Terminate cancels a running job's execution context. It returns an
// error if the job is not running.
func (j *Job) Terminate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != JobRunning {
		return fmt.Errorf("job %q is not running", j.ID)
	}
	if j.cancel != nil {
		j.cancel()
	}
	return nil
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) setStatus(s JobStatus) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// jobWriter adapts a Job's sliding output buffer to io.Writer so
// procexec.Run can stream stdout/stderr into it as the child produces
// output, rather than only after the process exits.
type jobWriter struct {
	job *Job
}

func (w jobWriter) Write(p []byte) (int, error) {
	w.job.mu.Lock()
	w.job.output.write(p)
	w.job.mu.Unlock()
	return len(p), nil
}

// Output returns {bytes from offset, totalSize, complete}.
func (j *Job) Output(offset int) (data []byte, totalSize int, complete bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	data = j.output.since(offset)
	totalSize = j.output.totalWritten
	complete = j.status != JobRunning
	return
}

// slidingBuffer keeps at most jobOutputCap bytes, dropping from the head
// on overflow, while totalWritten still tracks the true byte count ever
// appended so offset-based polling stays correct.
type slidingBuffer struct {
	data         []byte
	droppedBytes int
	totalWritten int
}

func (b *slidingBuffer) write(p []byte) {
	b.data = append(b.data, p...)
	b.totalWritten += len(p)
	if len(b.data) > jobOutputCap {
		overflow := len(b.data) - jobOutputCap
		b.data = b.data[overflow:]
		b.droppedBytes += overflow
	}
}

// since returns the bytes from absolute offset onward, clamped to what
// the sliding window still retains.
func (b *slidingBuffer) since(offset int) []byte {
	start := offset - b.droppedBytes
	if start < 0 {
		start = 0
	}
	if start >= len(b.data) {
		return nil
	}
	return append([]byte(nil), b.data[start:]...)
}

// Registry is the bounded background-job table.
type Registry struct {
	history *History

	mu      sync.Mutex
	jobs    map[string]*Job
	nextID  int64
	maxJobs int

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry builds a job Registry capped at maxJobs (0 = default 20).
// history, if non-nil, receives an entry on job completion.
func NewRegistry(maxJobs int, history *History) *Registry {
	if maxJobs <= 0 {
		maxJobs = defaultMaxJobs
	}
	r := &Registry{jobs: make(map[string]*Job), maxJobs: maxJobs, history: history, stopCh: make(chan struct{})}
	go r.sweepLoop()
	return r
}

// Start spawns shell/command as a background job. It returns the job
// handle immediately; the caller observes completion via Output or
// Status.
func (r *Registry) Start(program string, argPrefix []string, command string, workingDir string, env map[string]string, timeout time.Duration) (*Job, error) {
	r.mu.Lock()
	if len(r.jobs) >= r.maxJobs {
		r.sweepLocked()
		if len(r.jobs) >= r.maxJobs {
			r.mu.Unlock()
			return nil, fmt.Errorf("background job registry is full (max %d)", r.maxJobs)
		}
	}
	r.nextID++
	id := fmt.Sprintf("job_%d", r.nextID)
	r.mu.Unlock()

	job := &Job{ID: id, Shell: program, Command: command, StartTime: time.Now(), status: JobRunning}

	r.mu.Lock()
	r.jobs[id] = job
	r.mu.Unlock()

	go r.run(job, program, argPrefix, command, workingDir, env, timeout)
	return job, nil
}

func (r *Registry) run(job *Job, program string, argPrefix []string, command, workingDir string, env map[string]string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
	defer cancel()

	job.mu.Lock()
	job.cancel = cancel
	job.mu.Unlock()

	result, err := procexec.Run(ctx, procexec.Spec{
		Program:          program,
		ArgPrefix:        argPrefix,
		Command:          command,
		WorkingDirectory: workingDir,
		Environment:      env,
		Timeout:          timeout,
		Stream:           jobWriter{job: job},
	})

	job.mu.Lock()
	job.EndTime = time.Now()
	if err != nil {
		job.output.write([]byte("\n[job timed out or failed to execute]\n"))
		job.ExitCode = -1
		job.status = JobTimeout
		job.mu.Unlock()
		r.appendHistory(job)
		return
	}
	// stdout/stderr were already streamed into job.output as they arrived
	// via jobWriter; only the exit code and status remain to record.
	job.ExitCode = result.ExitCode
	if result.ExitCode == 0 {
		job.status = JobCompleted
	} else {
		job.status = JobFailed
	}
	job.mu.Unlock()

	r.appendHistory(job)
}

func (r *Registry) appendHistory(job *Job) {
	if r.history == nil {
		return
	}
	output, _, _ := job.Output(0)
	r.history.Add(HistoryEntry{
		Command:   job.Command,
		Output:    string(output),
		Timestamp: job.EndTime,
		ExitCode:  job.ExitCode,
	})
}

// Get returns the job with the given id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Delete removes a non-running job from the registry.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("no job with id %q", id)
	}
	if job.Status() == JobRunning {
		return fmt.Errorf("cannot delete a running job")
	}
	delete(r.jobs, id)
	return nil
}

// List returns every currently tracked job id.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.sweepLocked()
			r.mu.Unlock()
		}
	}
}

// sweepLocked removes completed jobs older than jobRetention (1 hour).
func (r *Registry) sweepLocked() {
	cutoff := time.Now().Add(-jobRetention)
	for id, job := range r.jobs {
		if job.Status() == JobRunning {
			continue
		}
		if job.EndTime.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

// Stop halts the sweeper.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}
