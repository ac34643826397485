package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel carries the identity and audit columns shared by catalog entities.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;column:id;not null;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// BeforeCreate is a GORM hook that is triggered before a new record is created.
func (base *BaseModel) BeforeCreate(tx *gorm.DB) (err error) {
	if base.ID == uuid.Nil {
		base.ID, err = uuid.NewRandom()
		if err != nil {
			return
		}
	}
	now := time.Now().UTC()
	base.CreatedAt = now
	base.UpdatedAt = now
	return
}

// BeforeUpdate is a GORM hook that is triggered before an existing record is updated.
func (base *BaseModel) BeforeUpdate(tx *gorm.DB) (err error) {
	base.UpdatedAt = time.Now().UTC()
	return
}

// Task is a named shell command registered for later execution.
type Task struct {
	BaseModel
	Name        string `gorm:"type:varchar(100);column:name;not null;index" json:"name"`
	Description string `gorm:"type:text;column:description" json:"description"`
	Command     string `gorm:"type:text;column:command;not null" json:"command"` // Re-validated on every execution
	Framework   string `gorm:"type:varchar(100);column:framework" json:"framework,omitempty"`
	AssignedTo  string `gorm:"type:varchar(100);column:assigned_to" json:"assignedTo,omitempty"`
}

func (t *Task) TableName() string {
	return "tasks"
}
