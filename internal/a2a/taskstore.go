package a2a

import (
	"context"
	"sync"

	sdka2a "github.com/a2aproject/a2a-go/a2a"

	"collab-hub/internal/delegation"
)

// TaskStoreAdapter implements a2asrv.TaskStore over the delegation workflow.
// The workflow is the source of truth: tasks whose id matches a delegation
// are projected from it on every Get, so A2A clients always see the current
// delegation state. SDK-managed bookkeeping tasks are kept in memory.
type TaskStoreAdapter struct {
	workflow *delegation.Workflow

	mu    sync.RWMutex
	tasks map[sdka2a.TaskID]*sdka2a.Task
}

func NewTaskStoreAdapter(workflow *delegation.Workflow) *TaskStoreAdapter {
	return &TaskStoreAdapter{
		workflow: workflow,
		tasks:    make(map[sdka2a.TaskID]*sdka2a.Task),
	}
}

func (s *TaskStoreAdapter) Save(_ context.Context, task *sdka2a.Task) error {
	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()
	return nil
}

func (s *TaskStoreAdapter) Get(_ context.Context, taskID sdka2a.TaskID) (*sdka2a.Task, error) {
	if record, err := s.workflow.Get(string(taskID)); err == nil {
		return ToSDKTask(record), nil
	}
	s.mu.RLock()
	task, ok := s.tasks[taskID]
	s.mu.RUnlock()
	if !ok {
		return nil, sdka2a.ErrTaskNotFound
	}
	return task, nil
}
