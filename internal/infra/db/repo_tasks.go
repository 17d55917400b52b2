package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bountyd/internal/domain"

	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("db unavailable")

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task domain.Task) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := toModel(task)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrInvalidState
		}
		return err
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model TaskModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return fromModel(model)
}

func (r *TaskRepository) Update(ctx context.Context, task domain.Task) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := toModel(task)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&TaskModel{}).Where("id = ?", task.ID).Select("*").Omit("created_at").Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []TaskModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(models))
	for _, model := range models {
		task, err := fromModel(model)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

func toModel(task domain.Task) (TaskModel, error) {
	deliverables, err := json.Marshal(task.Deliverables)
	if err != nil {
		return TaskModel{}, err
	}
	dod, err := json.Marshal(task.DefinitionOfDone)
	if err != nil {
		return TaskModel{}, err
	}
	requirements, err := json.Marshal(task.EvidenceRequirements)
	if err != nil {
		return TaskModel{}, err
	}

	return TaskModel{
		ID:                   task.ID,
		Title:                task.Title,
		Category:             string(task.Category),
		BountyToken:          task.Bounty.Token,
		BountyAmount:         task.Bounty.Amount,
		DeliverablesJSON:     deliverables,
		DefinitionOfDoneJSON: dod,
		RequirementsJSON:     requirements,
		Status:               string(task.Status),
		Claimer:              task.Claimer,
		EvidenceCID:          task.EvidenceCID,
		VerifierReportCID:    task.VerifierReportCID,
		CreatedAt:            task.CreatedAt,
		ClaimedAt:            optionalTime(task.ClaimedAt),
		SubmittedAt:          optionalTime(task.SubmittedAt),
		ApprovedAt:           optionalTime(task.ApprovedAt),
		ClaimDeadline:        optionalTime(task.ClaimDeadline),
		SubmitDeadline:       optionalTime(task.SubmitDeadline),
	}, nil
}

func fromModel(model TaskModel) (*domain.Task, error) {
	task := domain.Task{
		ID:                model.ID,
		Title:             model.Title,
		Category:          domain.Category(model.Category),
		Bounty:            domain.Bounty{Token: model.BountyToken, Amount: model.BountyAmount},
		Status:            domain.TaskStatus(model.Status),
		Claimer:           model.Claimer,
		EvidenceCID:       model.EvidenceCID,
		VerifierReportCID: model.VerifierReportCID,
		CreatedAt:         model.CreatedAt,
		ClaimedAt:         timeValue(model.ClaimedAt),
		SubmittedAt:       timeValue(model.SubmittedAt),
		ApprovedAt:        timeValue(model.ApprovedAt),
		ClaimDeadline:     timeValue(model.ClaimDeadline),
		SubmitDeadline:    timeValue(model.SubmitDeadline),
	}

	if len(model.DeliverablesJSON) > 0 {
		if err := json.Unmarshal(model.DeliverablesJSON, &task.Deliverables); err != nil {
			return nil, err
		}
	}
	if len(model.DefinitionOfDoneJSON) > 0 {
		if err := json.Unmarshal(model.DefinitionOfDoneJSON, &task.DefinitionOfDone); err != nil {
			return nil, err
		}
	}
	if len(model.RequirementsJSON) > 0 {
		if err := json.Unmarshal(model.RequirementsJSON, &task.EvidenceRequirements); err != nil {
			return nil, err
		}
	}
	return &task, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	out := t
	return &out
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
