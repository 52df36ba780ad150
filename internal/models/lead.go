package models

import (
	"strings"
	"time"
)

// Lead is an unqualified prospect tracked by status.
type Lead struct {
	ID         string      `db:"id" json:"id"`
	UserID     string      `db:"user_id" json:"user_id"`
	AssignedTo *string     `db:"assigned_to" json:"assigned_to,omitempty"`
	FirstName  string      `db:"first_name" json:"first_name"`
	LastName   string      `db:"last_name" json:"last_name"`
	Company    string      `db:"company" json:"company"`
	Email      string      `db:"email" json:"email"`
	Phone      string      `db:"phone" json:"phone"`
	Access     AccessLevel `db:"access" json:"access"`
	Status     string      `db:"status" json:"status"`
	DeletedAt  *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display and search.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

func (l Lead) RecordID() string          { return l.ID }
func (l Lead) OwnerID() string           { return l.UserID }
func (l Lead) AssigneeID() *string       { return l.AssignedTo }
func (l Lead) RecordAccess() AccessLevel { return l.Access }
func (l Lead) DeletedTime() *time.Time   { return l.DeletedAt }
func (l Lead) Category() string          { return l.Status }
func (l Lead) SearchText() string        { return l.FullName() + " " + l.Company }
