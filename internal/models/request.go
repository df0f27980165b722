package models

import (
	"strings"
	"time"
)

// Request statuses
const (
	StatusOpen       = "Open"
	StatusClosed     = "Closed"
	StatusResolved   = "Resolved"
	StatusUnassigned = "Unassigned"
	StatusOnHold     = "On Hold"
)

// Request priorities: a level word followed by the visibility scope label
const (
	PriorityHigh   = "High [ ** Entire Organisation **]"
	PriorityMedium = "Medium [ ** Department only **]"
	PriorityLow    = "Low [ ** User only **]"
)

// Statuses lists every assignable status in display order
var Statuses = []string{StatusOpen, StatusClosed, StatusOnHold, StatusResolved, StatusUnassigned}

// Priorities lists every assignable priority in display order
var Priorities = []string{PriorityHigh, PriorityMedium, PriorityLow}

// Sites lists the facility locations a request can be raised for
var Sites = []string{
	"Accra HQ",
	"Tema R&M station",
	"Cotonou R&M station",
	"Takoradi R&M station",
	"Lome R&M station",
	"Ikeja",
}

// Technicians lists the assignable support staff
var Technicians = []string{
	"Abel Uche Ekwonyeaseso",
	"Adewunmi Akinyode",
	"Adeyemi A. Adeola",
	"Leonard Acquah",
	"Prince T. Okutu",
	"Joseph Appiah",
	"Kwame Opare Adufo",
	"Joshua Sackey",
	"Samuel E.Calys-Tagoe",
	"Kamoli O. Ganiyu",
	"Gentle Agoh",
	"Timothy Jide Adebisi",
}

// Request is a single support ticket submitted by a user
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type Request struct {
	ID             string       `gorm:"primaryKey;type:uuid" json:"id"`
	Title          string       `gorm:"size:64" json:"title"`
	Name           string       `json:"name,omitempty"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	Requester      string       `gorm:"not null" json:"requester"`
	RequesterUID   string       `gorm:"column:requester_uid;not null;index" json:"requesterUID"`
	RequesterEmail string       `json:"requesterEmail"`
	Technician     string       `gorm:"index" json:"technician"`
	Status         string       `gorm:"not null;default:'Open';index" json:"status"`
	Priority       string       `gorm:"not null" json:"priority"`
	Site           string       `json:"site"`
	Attachments    []Attachment `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"attachments"`
	Date           *time.Time   `gorm:"index" json:"date"`
	UpdatedBy      string       `json:"updatedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Request model
func (Request) TableName() string {
	return "requests"
}

// OwnedBy reports whether uid submitted the request
func (r *Request) OwnedBy(uid string) bool {
	return uid != "" && r.RequesterUID == uid
}

// Attachment is a file stored on the external file host, owned by exactly one Request
type Attachment struct {
	ID                 string    `gorm:"primaryKey;type:uuid" json:"id"`
	RequestID          string    `gorm:"type:uuid;not null;index" json:"-"`
	Position           int       `gorm:"not null" json:"-"`
	FileName           string    `gorm:"not null" json:"fileName"`
	FileType           string    `json:"fileType"`
	FileSize           int64     `json:"fileSize"`
	CloudinaryURL      string    `gorm:"column:cloudinary_url" json:"cloudinaryUrl"`
	CloudinaryPublicID string    `gorm:"column:cloudinary_public_id" json:"cloudinaryPublicId"`
	ThumbnailURL       string    `gorm:"column:thumbnail_url" json:"thumbnailUrl,omitempty"`
	UploadedAt         time.Time `json:"uploadedAt"`
}

// TableName specifies the table name for Attachment model
func (Attachment) TableName() string {
	return "request_attachments"
}

// IsStatus reports whether s is one of the known statuses
func IsStatus(s string) bool {
	return contains(Statuses, s)
}

// IsPriority reports whether p is one of the known priorities
func IsPriority(p string) bool {
	return contains(Priorities, p)
}

// IsSite reports whether s is one of the known sites
func IsSite(s string) bool {
	return contains(Sites, s)
}

// PriorityLevel returns the lower-cased level word of a priority
// ("High [ ** Entire Organisation **]" -> "high")
func PriorityLevel(p string) string {
	level, _, _ := strings.Cut(strings.TrimSpace(p), "[")
	return strings.ToLower(strings.TrimSpace(level))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
