package models

import "time"

// Opportunity is a deal moving through the pipeline stages.
type Opportunity struct {
	ID          string      `db:"id" json:"id"`
	UserID      string      `db:"user_id" json:"user_id"`
	AssignedTo  *string     `db:"assigned_to" json:"assigned_to,omitempty"`
	Name        string      `db:"name" json:"name"`
	Access      AccessLevel `db:"access" json:"access"`
	Stage       string      `db:"stage" json:"stage"`
	Amount      float64     `db:"amount" json:"amount"`
	Probability int         `db:"probability" json:"probability"`
	ClosesOn    *time.Time  `db:"closes_on" json:"closes_on,omitempty"`
	DeletedAt   *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

func (o Opportunity) RecordID() string          { return o.ID }
func (o Opportunity) OwnerID() string           { return o.UserID }
func (o Opportunity) AssigneeID() *string       { return o.AssignedTo }
func (o Opportunity) RecordAccess() AccessLevel { return o.Access }
func (o Opportunity) DeletedTime() *time.Time   { return o.DeletedAt }
func (o Opportunity) Category() string          { return o.Stage }
func (o Opportunity) SearchText() string        { return o.Name }
