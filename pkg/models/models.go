package models

import "time"

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

// ComplaintStatus defines lifecycle states for a complaint.
type ComplaintStatus string

const (
	StatusSubmitted  ComplaintStatus = "submitted"
	StatusInProgress ComplaintStatus = "in_progress"
	StatusResolved   ComplaintStatus = "resolved"
	StatusRejected   ComplaintStatus = "rejected"
)

// Valid reports whether s is one of the known lifecycle states.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// IssueType is the category assigned by image classification.
type IssueType string

const (
	IssuePothole     IssueType = "pothole"
	IssueGarbage     IssueType = "garbage"
	IssueWaterLeak   IssueType = "water leak"
	IssueStreetlight IssueType = "streetlight"
	IssueDrainage    IssueType = "drainage"
	IssueOther       IssueType = "other"
)

// Valid reports whether t is one of the known categories.
func (t IssueType) Valid() bool {
	switch t {
	case IssuePothole, IssueGarbage, IssueWaterLeak, IssueStreetlight, IssueDrainage, IssueOther:
		return true
	}
	return false
}

/* =============================== Entities =============================== */

// UserProfile represents a citizen or admin session identity.
// Profiles exist only for the lifetime of a session token; they are never
// persisted and cannot be edited after creation.
type UserProfile struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ComplaintUpdate is an immutable audit event on a complaint. Once appended
// it is never modified or removed.
type ComplaintUpdate struct {
	UpdateID      string          `json:"update_id"`
	ComplaintID   string          `json:"complaint_id"`
	UpdatedBy     string          `json:"updated_by"`
	Message       string          `json:"message"`
	StatusChange  ComplaintStatus `json:"status_change,omitempty"`
	ProofImageURL string          `json:"proof_image_url,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Complaint is one reported civic issue and its full history.
type Complaint struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	UserName          string          `json:"user_name"`
	ImageURL          string          `json:"image_url"`
	IssueType         IssueType       `json:"issue_type"`
	AIDescription     string          `json:"ai_description"`
	ManualDescription string          `json:"manual_description"`
	SeverityScore     int             `json:"severity_score"`
	Latitude          float64         `json:"latitude"`
	Longitude         float64         `json:"longitude"`
	Address           string          `json:"address"`
	Status            ComplaintStatus `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	// DuplicateFlag is reserved for duplicate detection; nothing sets it yet.
	DuplicateFlag bool              `json:"duplicate_flag"`
	Updates       []ComplaintUpdate `json:"updates"`
}
