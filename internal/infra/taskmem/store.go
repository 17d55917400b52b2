package taskmem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bountyd/internal/domain"
)

// Store is the in-memory task repository used by tests and no-db
// deployments. Tasks are copied on every boundary so callers never share
// the stored record.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

func NewStore() *Store {
	return &Store{tasks: make(map[string]domain.Task)}
}

func (s *Store) Create(_ context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: task %s already exists", domain.ErrInvalidState, task.ID)
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *Store) GetByID(_ context.Context, taskID string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	out := cloneTask(task)
	return &out, nil
}

func (s *Store) Update(_ context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, task.ID)
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *Store) ListByStatus(_ context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Task
	for _, task := range s.tasks {
		if task.Status == status {
			out = append(out, cloneTask(task))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneTask(task domain.Task) domain.Task {
	out := task
	out.Deliverables = append([]string(nil), task.Deliverables...)
	out.DefinitionOfDone = append([]string(nil), task.DefinitionOfDone...)
	if task.EvidenceRequirements != nil {
		out.EvidenceRequirements = make(map[string]bool, len(task.EvidenceRequirements))
		for k, v := range task.EvidenceRequirements {
			out.EvidenceRequirements[k] = v
		}
	}
	return out
}
