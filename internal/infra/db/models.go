package db

import "time"

type TaskModel struct {
	ID                   string `gorm:"primaryKey"`
	Title                string `gorm:"not null"`
	Category             string `gorm:"index;not null"`
	BountyToken          string `gorm:"not null"`
	BountyAmount         int64  `gorm:"not null"`
	DeliverablesJSON     []byte `gorm:"type:jsonb"`
	DefinitionOfDoneJSON []byte `gorm:"type:jsonb"`
	RequirementsJSON     []byte `gorm:"type:jsonb"`

	Status            string `gorm:"index;not null"`
	Claimer           string `gorm:"index"`
	EvidenceCID       string
	VerifierReportCID string

	CreatedAt   time.Time `gorm:"not null"`
	ClaimedAt   *time.Time
	SubmittedAt *time.Time
	ApprovedAt  *time.Time

	ClaimDeadline  *time.Time
	SubmitDeadline *time.Time
}

func (TaskModel) TableName() string {
	return "tasks"
}
