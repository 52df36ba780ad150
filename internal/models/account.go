package models

import "time"

// Account is a company record. Account names are unique per owner among
// non-deleted rows; the service enforces this at the application level.
type Account struct {
	ID         string      `db:"id" json:"id"`
	UserID     string      `db:"user_id" json:"user_id"`
	AssignedTo *string     `db:"assigned_to" json:"assigned_to,omitempty"`
	Name       string      `db:"name" json:"name"`
	Access     AccessLevel `db:"access" json:"access"`
	Website    string      `db:"website" json:"website"`
	Phone      string      `db:"phone" json:"phone"`
	DeletedAt  *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

func (a Account) RecordID() string          { return a.ID }
func (a Account) OwnerID() string           { return a.UserID }
func (a Account) AssigneeID() *string       { return a.AssignedTo }
func (a Account) RecordAccess() AccessLevel { return a.Access }
func (a Account) DeletedTime() *time.Time   { return a.DeletedAt }
func (a Account) Category() string          { return "" }
func (a Account) SearchText() string        { return a.Name }
