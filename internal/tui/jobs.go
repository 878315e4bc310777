package tui

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type jobKind string

type jobStatus string

const (
	jobKindBooks    jobKind = "books"
	jobKindChapters jobKind = "chapters"
	jobKindChapter  jobKind = "chapter"
	jobKindInsert   jobKind = "insert"
	jobKindSave     jobKind = "save"
	jobKindDelete   jobKind = "delete"
	jobKindConvert  jobKind = "convert"
	jobKindApply    jobKind = "apply"
	jobKindImport   jobKind = "import"
	jobKindPaste    jobKind = "paste"
	jobKindSettings jobKind = "settings"
)

const (
	jobStatusRunning   jobStatus = "running"
	jobStatusSucceeded jobStatus = "succeeded"
	jobStatusFailed    jobStatus = "failed"
)

type jobSnapshot struct {
	ID          string
	Kind        jobKind
	Status      jobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Err         string
	Duration    time.Duration
}

type jobSignalMsg struct {
	Snapshot jobSnapshot
}

type jobResultEnvelope struct {
	Snapshot jobSnapshot
	Payload  tea.Msg
}

type jobRunner func(context.Context) (tea.Msg, error)

type jobBus struct {
	counter int64
	log     *zap.Logger
}

func newJobBus(logger *zap.Logger) *jobBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &jobBus{log: logger}
}

func (b *jobBus) nextID(kind jobKind) string {
	idx := atomic.AddInt64(&b.counter, 1)
	return fmt.Sprintf("%s-%d", kind, idx)
}

// Start runs runner under parent. Cancelling parent abandons the job; the
// runner still reports back so the result can be discarded by the model.
func (b *jobBus) Start(parent context.Context, kind jobKind, runner jobRunner) tea.Cmd {
	if parent == nil {
		parent = context.Background()
	}
	id := b.nextID(kind)
	started := time.Now()
	startSnapshot := jobSnapshot{ID: id, Kind: kind, Status: jobStatusRunning, StartedAt: started}
	startCmd := func() tea.Msg {
		return jobSignalMsg{Snapshot: startSnapshot}
	}

	runCmd := func() tea.Msg {
		payload, err := runner(parent)
		snapshot := jobSnapshot{
			ID:          id,
			Kind:        kind,
			StartedAt:   started,
			CompletedAt: time.Now(),
		}
		if err != nil {
			snapshot.Status = jobStatusFailed
			snapshot.Err = err.Error()
		} else {
			snapshot.Status = jobStatusSucceeded
		}
		snapshot.Duration = snapshot.CompletedAt.Sub(started)
		fields := []zap.Field{zap.String("id", id), zap.String("status", string(snapshot.Status)), zap.Duration("duration", snapshot.Duration)}
		if err != nil {
			b.log.Info("[jobs] "+string(kind), append(fields, zap.Error(err))...)
		} else {
			b.log.Debug("[jobs] "+string(kind), fields...)
		}
		return jobResultEnvelope{Snapshot: snapshot, Payload: payload}
	}

	return tea.Sequence(startCmd, runCmd)
}

// runningJobs returns the in-flight jobs oldest first.
func runningJobs(jobs map[string]jobSnapshot) []jobSnapshot {
	out := make([]jobSnapshot, 0, len(jobs))
	for _, snap := range jobs {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
