package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Execution is the durable record of one run of a task's command.
// One is written per execute call, whether the run succeeded, failed, timed out or errored.
type Execution struct {
	ID         uuid.UUID `gorm:"type:uuid;column:id;not null;primaryKey" json:"id"`
	TaskID     uuid.UUID `gorm:"type:uuid;column:task_id;not null;index" json:"taskId"` // No cascade: records outlive their task
	CommandRun string    `gorm:"type:text;column:command_run;not null" json:"commandRun"`
	Output     string    `gorm:"type:text;column:output" json:"output"`
	Success    bool      `gorm:"column:success;not null" json:"success"`
	ExecutedAt time.Time `gorm:"column:executed_at;not null;index" json:"executedAt"`
}

func (e *Execution) TableName() string {
	return "task_executions"
}

// BeforeCreate assigns the record id and, when unset, the execution time.
func (e *Execution) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID, err = uuid.NewRandom()
		if err != nil {
			return
		}
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}
	return
}

// Models lists every table owned by the service, in migration order.
func Models() []any {
	return []any{&Task{}, &Execution{}}
}
