package jobmanager

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/agentdash/agentdash/internal/proc"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Config holds the filesystem and worker settings for a Manager.
type Config struct {
	// DataDir is where per-job temporary input files and log files are
	// written: task_<id>.json, config_<id>.json, job_<id>.log.
	DataDir string

	// WorkerBin is the agent worker executable to spawn for each job. It is
	// treated as opaque; the Manager only starts and supervises it.
	WorkerBin string

	// DefaultWorkdir is used when a submission doesn't specify a working
	// directory. Defaults to the directory of the running executable.
	DefaultWorkdir string
}

// Manager is responsible for creating and managing Jobs.
type Manager struct {
	// NOTE: The jobs map will grow unbounded with no way to remove items.
	// Records live in memory for the lifetime of the serving process; nothing
	// survives a restart. A deployment that needs durability or more than one
	// instance would have to back this with external storage.
	jobs map[string]*job
	mu   sync.Mutex

	cfg    Config
	prober proc.Prober
	logger *slog.Logger
}

// NewManager creates a new Manager ready to run Jobs.
func NewManager(cfg Config, prober proc.Prober, logger *slog.Logger) *Manager {
	if cfg.DefaultWorkdir == "" {
		if exe, err := os.Executable(); err == nil {
			cfg.DefaultWorkdir = filepath.Dir(exe)
		} else {
			cfg.DefaultWorkdir = "."
		}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Manager{
		jobs:   make(map[string]*job),
		cfg:    cfg,
		prober: prober,
		logger: logger,
	}
}

// Submit registers a new Job for the given task and config and begins
// spawning the worker process asynchronously. It returns the pending record
// without waiting for the process to start or finish. A missing task or
// config fails with a ValidationError and creates no job.
func (m *Manager) Submit(task, config json.RawMessage, workdir string) (JobRecord, error) {
	if !isJSONObjectPresent(task) {
		return JobRecord{}, ValidationError{Reason: "agent_worker_task is required"}
	}

	if !isJSONObjectPresent(config) {
		return JobRecord{}, ValidationError{Reason: "config is required"}
	}

	if workdir == "" {
		workdir = m.cfg.DefaultWorkdir
	}

	id := uuid.NewString()

	j := &job{
		record: JobRecord{
			ID:        id,
			Status:    StatusPending,
			CreatedAt: time.Now(),
			Workdir:   workdir,
		},
		taskPath:   filepath.Join(m.cfg.DataDir, "task_"+id+".json"),
		configPath: filepath.Join(m.cfg.DataDir, "config_"+id+".json"),
		logPath:    filepath.Join(m.cfg.DataDir, "job_"+id+".log"),
	}

	m.mu.Lock()
	m.jobs[id] = j
	m.mu.Unlock()

	// Snapshot before the spawn goroutine starts so the caller always sees
	// the pending record, even if the spawn fails immediately.
	record := j.snapshot()

	go m.spawn(j, task, config)

	return record, nil
}

// Get returns the record of the Job with the given id or ErrJobNotFound if
// it doesn't exist. A running record is reconciled against the liveness
// probe first.
func (m *Manager) Get(id string) (JobRecord, error) {
	j, exists := m.lookup(id)
	if !exists {
		return JobRecord{}, ErrJobNotFound
	}

	m.reconcile(j)

	return j.snapshot(), nil
}

// List returns the records of all Jobs, newest first. Each running record is
// reconciled against the liveness probe so stale state is corrected lazily
// rather than by a background sweep.
func (m *Manager) List() []JobRecord {
	m.mu.Lock()
	jobs := slices.Collect(maps.Values(m.jobs))
	m.mu.Unlock()

	records := make([]JobRecord, 0, len(jobs))
	for _, j := range jobs {
		m.reconcile(j)
		records = append(records, j.snapshot())
	}

	slices.SortFunc(records, func(a, b JobRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return records
}

// Cancel requests termination of the Job with the given id and returns the
// post-attempt record. Cancelling a job that isn't running is an idempotent
// no-op returning the record unchanged. The call returns once the
// termination request has been issued, not once the process has exited.
func (m *Manager) Cancel(id string) (JobRecord, error) {
	j, exists := m.lookup(id)
	if !exists {
		return JobRecord{}, ErrJobNotFound
	}

	j.mu.Lock()

	if j.record.Status != StatusRunning {
		record := j.record
		j.mu.Unlock()

		return record, nil
	}

	pid := j.record.PID

	err := unix.Kill(pid, unix.SIGKILL)
	switch {
	case err == nil:
		j.record.Status = StatusCancelled
		j.record.CompletedAt = time.Now()
		j.mu.Unlock()

	case errors.Is(err, unix.ESRCH):
		// Process already gone; fall back to reconciliation rather than
		// failing the call.
		j.mu.Unlock()
		m.reconcile(j)

	default:
		j.mu.Unlock()

		return JobRecord{}, fmt.Errorf("terminate pid %d: %w", pid, err)
	}

	return j.snapshot(), nil
}

// Shutdown makes a 'best effort' attempt to cancel any running Jobs managed
// by the Manager.
func (m *Manager) Shutdown() {
	for _, record := range m.List() {
		if record.Status != StatusRunning {
			continue
		}

		if _, err := m.Cancel(record.ID); err != nil {
			m.logger.Warn("cancel job on shutdown", "id", record.ID, "err", err)
		}
	}
}

func (m *Manager) lookup(id string) (*job, bool) {
	m.mu.Lock()
	j, exists := m.jobs[id]
	m.mu.Unlock()

	return j, exists
}

// spawn materializes the job's inputs, launches the worker process, and
// delivers the completion exactly once when the process exits. A launch
// failure forces the record to failed; a job never stays stuck in pending.
func (m *Manager) spawn(j *job, task, config json.RawMessage) {
	record := j.snapshot()

	if err := m.writeInputs(j, task, config); err != nil {
		j.finish(StatusFailed, err.Error())
		m.removeInputs(j)

		return
	}

	// Both stdout and stderr of the worker append to a single per-job log
	// file. The relative interleaving of the two streams is whatever the OS
	// delivers.
	logFile, err := os.OpenFile(
		j.logPath,
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		j.finish(StatusFailed, fmt.Sprintf("open job log: %v", err))
		m.removeInputs(j)

		return
	}

	cmd := exec.Command(
		m.cfg.WorkerBin,
		"--task", j.taskPath,
		"--config", j.configPath,
	)
	cmd.Dir = record.Workdir
	cmd.Env = os.Environ()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()

		j.finish(StatusFailed, fmt.Sprintf("start worker: %v", err))
		m.removeInputs(j)

		m.logger.Error("start worker", "id", record.ID, "err", err)

		return
	}

	// The child holds its own descriptor after Start.
	logFile.Close()

	j.markRunning(cmd.Process.Pid)

	m.logger.Info("worker started", "id", record.ID, "pid", cmd.Process.Pid)

	err = cmd.Wait()
	if err != nil {
		j.finish(StatusFailed, err.Error())
	} else {
		j.finish(StatusCompleted, "")
	}

	m.logger.Info("worker exited", "id", record.ID, "status", j.snapshot().Status)

	m.removeInputs(j)
}

// reconcile corrects a running record whose process no longer exists. The
// job is assumed completed: the probe cannot distinguish a clean exit from a
// crash that left no marker, or from a pid silently reused by the OS.
func (m *Manager) reconcile(j *job) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.record.Status != StatusRunning {
		return
	}

	if m.prober.Exists(j.record.PID) {
		return
	}

	j.record.Status = StatusCompleted
	j.record.CompletedAt = time.Now()
}

func (m *Manager) writeInputs(j *job, task, config json.RawMessage) error {
	if err := os.MkdirAll(m.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if err := os.WriteFile(j.taskPath, task, 0o644); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}

	if err := os.WriteFile(j.configPath, config, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// removeInputs deletes the temporary input files. Cleanup is best effort: a
// failure is logged and never surfaced as a job failure.
func (m *Manager) removeInputs(j *job) {
	for _, path := range []string{j.taskPath, j.configPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("remove job input file", "path", path, "err", err)
		}
	}
}

// isJSONObjectPresent reports whether raw carries an actual value, treating
// both an absent field and an explicit null as missing.
func isJSONObjectPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
