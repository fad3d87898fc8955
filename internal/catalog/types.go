package catalog

import (
	"errors"
	"fmt"
	"time"
)

// EndTimeLayout is the minute-precision layout giveaway end dates are stored
// in. It matches what admins type when creating a giveaway.
const EndTimeLayout = "02.01.2006 15:04"

var (
	ErrNotFound      = errors.New("record not found")
	ErrValidation    = errors.New("validation failed")
	ErrGiveawayEnded = errors.New("giveaway already ended")
)

// PersistError reports a failed synchronous save. The in-memory mutation is
// rolled back before it is returned, so memory and disk stay consistent.
type PersistError struct {
	Collection string
	Err        error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Collection, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// ContentRecord is one catalog entry for a downloadable item.
//
// At most one of {FileLink, FilePath} is authoritative for delivery;
// FileLink (the external reference) takes priority when both are set.
type ContentRecord struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Genre        string    `json:"genre,omitempty"`
	SizeCategory string    `json:"size_category,omitempty"`
	Description  string    `json:"description,omitempty"`
	PostLink     string    `json:"post_link,omitempty"`
	FileLink     string    `json:"file_link,omitempty"` // external file reference
	FilePath     string    `json:"file_path,omitempty"` // local file reference
	FileName     string    `json:"file_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Participant struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}

// DisplayName prefers the username and falls back to the first name.
func (p Participant) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.FirstName
}

type Winner struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type GiveawayRecord struct {
	ID           int           `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Prize        string        `json:"prize"`
	EndAt        string        `json:"end_datetime"` // EndTimeLayout, minute precision
	CreatedAt    time.Time     `json:"created_at"`
	Ended        bool          `json:"ended"`
	Winner       *Winner       `json:"winner,omitempty"`
	Participants []Participant `json:"participants"`
}

// EndTime parses the stored end date.
func (g GiveawayRecord) EndTime() (time.Time, error) {
	return time.ParseInLocation(EndTimeLayout, g.EndAt, time.Local)
}

type UserRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

type SuggestionRecord struct {
	ID        int       `json:"id"`
	FromID    int64     `json:"from_id"`
	Username  string    `json:"username,omitempty"`
	Text      string    `json:"text"`
	Status    string    `json:"status"` // "pending", "approved", "rejected"
	CreatedAt time.Time `json:"created_at"`
}

const (
	SuggestionPending  = "pending"
	SuggestionApproved = "approved"
	SuggestionRejected = "rejected"
)

// AdminRecord describes a staff member. Higher Role means more privileges;
// broadcasts to staff use a minimum-role threshold.
type AdminRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
	Role int    `json:"role"`
}
