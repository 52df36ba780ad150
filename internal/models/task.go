package models

import "time"

// Task is a to-do item owned by a user, optionally assigned to another.
type Task struct {
	ID           string      `db:"id" json:"id"`
	UserID       string      `db:"user_id" json:"user_id"`
	AssignedTo   *string     `db:"assigned_to" json:"assigned_to,omitempty"`
	Name         string      `db:"name" json:"name"`
	Access       AccessLevel `db:"access" json:"access"`
	TaskCategory string      `db:"category" json:"category"`
	DueAt        *time.Time  `db:"due_at" json:"due_at,omitempty"`
	CompletedAt  *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	DeletedAt    *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

func (t Task) RecordID() string          { return t.ID }
func (t Task) OwnerID() string           { return t.UserID }
func (t Task) AssigneeID() *string       { return t.AssignedTo }
func (t Task) RecordAccess() AccessLevel { return t.Access }
func (t Task) DeletedTime() *time.Time   { return t.DeletedAt }
func (t Task) Category() string          { return t.TaskCategory }
func (t Task) SearchText() string        { return t.Name }
