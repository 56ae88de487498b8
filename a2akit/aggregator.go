package a2akit

import (
	"fmt"
	"slices"

	"github.com/a2aproject/a2a-go/a2a"
)

// ResultAggregator folds the events of a message/stream response into the
// current Task snapshot on the client side.
type ResultAggregator struct {
	task *a2a.Task
}

// Apply consumes ev and returns the current result: the *a2a.Message
// itself, or a snapshot of the aggregated *a2a.Task.
func (a *ResultAggregator) Apply(ev a2a.Event) (a2a.SendMessageResult, error) {
	switch e := ev.(type) {
	case *a2a.Message:
		return e, nil
	case *a2a.Task:
		a.task = cloneTask(e)
	case *a2a.TaskStatusUpdateEvent:
		a.ensure(e.TaskID, e.ContextID)
		if a.task.Status.Message != nil {
			a.task.History = append(a.task.History, a.task.Status.Message)
		}
		a.task.Status = e.Status
	case *a2a.TaskArtifactUpdateEvent:
		a.ensure(e.TaskID, e.ContextID)
		a.applyArtifact(e)
	default:
		return nil, fmt.Errorf("unsupported event %T", ev)
	}

	return cloneTask(a.task), nil
}

// Task returns the aggregated task, or nil when no task event was seen.
func (a *ResultAggregator) Task() *a2a.Task { return cloneTask(a.task) }

func (a *ResultAggregator) ensure(taskID a2a.TaskID, contextID string) {
	if a.task != nil {
		return
	}
	a.task = &a2a.Task{ID: taskID, ContextID: contextID, Status: a2a.TaskStatus{State: a2a.TaskStateUnknown}}
}

func (a *ResultAggregator) applyArtifact(e *a2a.TaskArtifactUpdateEvent) {
	if e.Artifact == nil {
		return
	}

	i := slices.IndexFunc(a.task.Artifacts, func(x *a2a.Artifact) bool { return x.ID == e.Artifact.ID })

	switch {
	case i < 0:
		art := *e.Artifact
		art.Parts = slices.Clone(e.Artifact.Parts)
		a.task.Artifacts = append(a.task.Artifacts, &art)
	case e.Append:
		art := *a.task.Artifacts[i]
		art.Parts = append(slices.Clone(art.Parts), e.Artifact.Parts...)
		a.task.Artifacts[i] = &art
	default:
		art := *e.Artifact
		a.task.Artifacts[i] = &art
	}
}

// cloneTask copies the slices the aggregator mutates.
func cloneTask(t *a2a.Task) *a2a.Task {
	if t == nil {
		return nil
	}

	c := *t
	c.History = slices.Clone(t.History)
	c.Artifacts = slices.Clone(t.Artifacts)

	return &c
}
