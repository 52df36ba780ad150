package models

import "time"

// AccessLevel controls who may see a record besides its owner and assignee.
type AccessLevel string

const (
	AccessPrivate AccessLevel = "Private"
	AccessPublic  AccessLevel = "Public"
	AccessShared  AccessLevel = "Shared"
)

// Valid reports whether the value is one of the closed set.
func (a AccessLevel) Valid() bool {
	switch a {
	case AccessPrivate, AccessPublic, AccessShared:
		return true
	}
	return false
}

// Record type discriminators used by the polymorphic permissions table.
const (
	RecordTypeAccount     = "Account"
	RecordTypeContact     = "Contact"
	RecordTypeLead        = "Lead"
	RecordTypeOpportunity = "Opportunity"
	RecordTypeTask        = "Task"
)

// Shareable is the capability surface every CRM record kind exposes to the
// access policy and the list pipeline. Category returns the empty string for
// kinds without one; SearchText is what free-text queries match against.
type Shareable interface {
	RecordID() string
	OwnerID() string
	AssigneeID() *string
	RecordAccess() AccessLevel
	DeletedTime() *time.Time
	Category() string
	SearchText() string
}

// PermissionGrant is one explicit (record, user) sharing relationship.
// Grants are only meaningful while the record's access level is Shared.
type PermissionGrant struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	RecordType string    `db:"record_type" json:"record_type"`
	RecordID   string    `db:"record_id" json:"record_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// PermissionDiff reports the grant changes applied by one reconcile pass.
type PermissionDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Empty reports whether the reconcile changed anything.
func (d PermissionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// CategoryDefinition is one (key, label) entry of a view's category list.
type CategoryDefinition struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// CategoryList is an ordered category definition, read-only to the core.
type CategoryList []CategoryDefinition

// Keys returns the category keys in definition order.
func (l CategoryList) Keys() []string {
	keys := make([]string, len(l))
	for i, def := range l {
		keys[i] = def.Key
	}
	return keys
}

// Has reports whether key is a defined category.
func (l CategoryList) Has(key string) bool {
	for _, def := range l {
		if def.Key == key {
			return true
		}
	}
	return false
}
