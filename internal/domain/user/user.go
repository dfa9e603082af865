package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// NotificationPrefs are the delivery channels a user opted into.
type NotificationPrefs struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
}

// DefaultNotificationPrefs matches what a freshly registered account gets.
func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{Email: true, Push: true, SMS: false}
}

// User is the read-only identity record the realtime core consults.
type User struct {
	ID          string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Avatar      string
	Role        Role
	Status      Status
	Preferences NotificationPrefs
}

// Identity is an authenticated actor: who is calling and on which side.
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

var (
	ErrEmptyID       = errors.New("user id cannot be empty")
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrBadTimestamps = errors.New("updated_at cannot be before created_at")
)

// NewUser builds an active user with default notification preferences.
func NewUser(id, firstName, lastName, email string, role Role) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:          strings.TrimSpace(id),
		CreatedAt:   now,
		UpdatedAt:   now,
		FirstName:   strings.TrimSpace(firstName),
		LastName:    strings.TrimSpace(lastName),
		Email:       strings.TrimSpace(email),
		Role:        role,
		Status:      StatusActive,
		Preferences: DefaultNotificationPrefs(),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks invariants of the User entity.
func (u *User) Validate() error {
	if u.ID == "" {
		return ErrEmptyID
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	if !u.Status.Valid() {
		return ErrInvalidStatus
	}
	if !u.CreatedAt.IsZero() && !u.UpdatedAt.IsZero() && u.UpdatedAt.Before(u.CreatedAt) {
		return ErrBadTimestamps
	}
	return nil
}

// DisplayName is "First Last", falling back to the email when both are blank.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Identity returns the actor view of the user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role}
}

func (id Identity) IsAdmin() bool { return id.Role.IsAdmin() }
