package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Severity is the four-level ordinal classification of a detected violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank orders severities so callers can compare tiers.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// AtLeast reports whether s is the same tier as or a higher tier than other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Action is the enforcement outcome recommended by the escalation policy.
type Action string

const (
	ActionAllowed   Action = "allowed"
	ActionFlagged   Action = "flagged"
	ActionWarned    Action = "warned"
	ActionSuspended Action = "account_suspended"
	ActionBlocked   Action = "blocked"
)

// IsBlocking reports whether the action should stop further requests from the user.
func (a Action) IsBlocking() bool {
	return a == ActionSuspended || a == ActionBlocked
}

// ViolationTypeInappropriateContent is the only violation type recorded today.
const ViolationTypeInappropriateContent = "inappropriate_content"

// TermList stores an ordered list of matched terms as a JSON column so the
// same model works on both Postgres and the SQLite test driver.
type TermList []string

// Value implements driver.Valuer.
func (t TermList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *TermList) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported type %T for TermList", value)
	}
}

// Violation is one append-only ledger entry. Records are never updated or
// deleted after creation; Severity reflects the lexicon at detection time and
// is never recomputed.
type Violation struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"size:64;not null;index:idx_violations_user_created,priority:1" json:"user_id"`
	Type          string    `gorm:"size:48;not null;default:inappropriate_content" json:"type"`
	Content       string    `gorm:"type:text" json:"content"`
	DetectedTerms TermList  `gorm:"type:text" json:"detected_terms"`
	Severity      Severity  `gorm:"size:16;not null" json:"severity"`
	Action        Action    `gorm:"size:32;not null" json:"action"`
	IPAddress     *string   `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent     *string   `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt     time.Time `gorm:"index:idx_violations_user_created,priority:2" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Violation) TableName() string {
	return "violations"
}

// BeforeCreate assigns a UUID so inserts stay independent single-row writes
// with no sequence coordination between concurrent appends.
func (v *Violation) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
