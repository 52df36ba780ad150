package models

import (
	"strings"
	"time"
)

// Contact is a person record, optionally linked to an account.
type Contact struct {
	ID         string      `db:"id" json:"id"`
	UserID     string      `db:"user_id" json:"user_id"`
	AssignedTo *string     `db:"assigned_to" json:"assigned_to,omitempty"`
	AccountID  *string     `db:"account_id" json:"account_id,omitempty"`
	FirstName  string      `db:"first_name" json:"first_name"`
	LastName   string      `db:"last_name" json:"last_name"`
	Email      string      `db:"email" json:"email"`
	Phone      string      `db:"phone" json:"phone"`
	Access     AccessLevel `db:"access" json:"access"`
	DeletedAt  *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display and search.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (c Contact) RecordID() string          { return c.ID }
func (c Contact) OwnerID() string           { return c.UserID }
func (c Contact) AssigneeID() *string       { return c.AssignedTo }
func (c Contact) RecordAccess() AccessLevel { return c.Access }
func (c Contact) DeletedTime() *time.Time   { return c.DeletedAt }
func (c Contact) Category() string          { return "" }
func (c Contact) SearchText() string        { return c.FullName() + " " + c.Email }
