package a2akit

import (
	"context"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
)

// TaskUpdater publishes task lifecycle events for one task.
type TaskUpdater struct {
	queue eventqueue.Queue
	info  a2a.TaskInfo
}

// NewTaskUpdater binds an updater to a queue and the task of info, usually
// the *a2asrv.RequestContext.
func NewTaskUpdater(queue eventqueue.Queue, info a2a.TaskInfoProvider) *TaskUpdater {
	return &TaskUpdater{queue: queue, info: info.TaskInfo()}
}

// TaskInfo implements a2a.TaskInfoProvider.
func (u *TaskUpdater) TaskInfo() a2a.TaskInfo { return u.info }

// NewAgentMessage builds an agent message bound to the task.
func (u *TaskUpdater) NewAgentMessage(parts ...a2a.Part) *a2a.Message {
	return a2a.NewMessageForTask(a2a.MessageRoleAgent, u, parts...)
}

// Submit publishes the task in the submitted state with msg as its history.
func (u *TaskUpdater) Submit(ctx context.Context, msg *a2a.Message) error {
	task := a2a.NewSubmittedTask(u, msg)
	if msg == nil {
		task.History = nil
	}
	ts := time.Now().UTC()
	task.Status.Timestamp = &ts
	return u.queue.Write(ctx, task)
}

// StartWork moves the task to working.
func (u *TaskUpdater) StartWork(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateWorking, msg, false)
}

// UpdateStatus publishes a status update.
func (u *TaskUpdater) UpdateStatus(ctx context.Context, state a2a.TaskState, msg *a2a.Message, final bool) error {
	ev := a2a.NewStatusUpdateEvent(u, state, msg)
	ev.Final = final
	return u.queue.Write(ctx, ev)
}

// AddArtifact publishes a new artifact made of parts.
func (u *TaskUpdater) AddArtifact(ctx context.Context, name string, parts ...a2a.Part) error {
	ev := a2a.NewArtifactEvent(u, parts...)
	ev.Artifact.Name = name
	ev.LastChunk = true
	return u.queue.Write(ctx, ev)
}

// Complete marks the task completed.
func (u *TaskUpdater) Complete(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateCompleted, msg, true)
}

// Failed marks the task failed.
func (u *TaskUpdater) Failed(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateFailed, msg, true)
}

// RequiresInput pauses the task until the client sends another message.
func (u *TaskUpdater) RequiresInput(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateInputRequired, msg, true)
}

// Cancel marks the task canceled.
func (u *TaskUpdater) Cancel(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateCanceled, msg, true)
}

// Interrupted reports whether a task in state s waits for the client.
func Interrupted(s a2a.TaskState) bool {
	return s == a2a.TaskStateInputRequired || s == a2a.TaskStateAuthRequired
}

// UserInput joins the text parts of m with sep.
func UserInput(m *a2a.Message, sep string) string {
	if m == nil {
		return ""
	}

	texts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if t, ok := p.(a2a.TextPart); ok {
			texts = append(texts, t.Text)
		}
	}

	return strings.Join(texts, sep)
}
