package request

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"transport-connect/internal/domain/geo"
)

// Side identifies which participant of a conversation an identity is.
type Side string

const (
	SideNone    Side = ""
	SideDriver  Side = "driver"
	SideShipper Side = "shipper"
)

// TimelineEntry records one applied status change.
type TimelineEntry struct {
	Status   Status     `json:"status"`
	At       time.Time  `json:"timestamp"`
	ActorID  string     `json:"updatedBy"`
	Note     string     `json:"note,omitempty"`
	Location *geo.Point `json:"location,omitempty"`
}

// Request is a shipper's ask to move a package on a driver's trip.
// DriverID is the trip's driver, denormalized at creation.
type Request struct {
	ID            string
	TripID        string
	DriverID      string
	ShipperID     string
	Status        Status
	LastMessageAt *time.Time
	Timeline      []TimelineEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	ErrEmptyParticipant  = errors.New("request needs both a driver and a shipper")
	ErrSameParticipant   = errors.New("driver and shipper must be different users")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoteTooLong       = errors.New("note is too long")
)

// MaxNoteLength bounds free-text notes on timeline entries.
const MaxNoteLength = 500

// New creates a pending request with an initial timeline entry.
func New(id, tripID, driverID, shipperID string) (*Request, error) {
	driverID = strings.TrimSpace(driverID)
	shipperID = strings.TrimSpace(shipperID)
	if driverID == "" || shipperID == "" {
		return nil, ErrEmptyParticipant
	}
	if driverID == shipperID {
		return nil, ErrSameParticipant
	}
	now := time.Now().UTC()
	return &Request{
		ID:        strings.TrimSpace(id),
		TripID:    strings.TrimSpace(tripID),
		DriverID:  driverID,
		ShipperID: shipperID,
		Status:    StatusPending,
		Timeline:  []TimelineEntry{{Status: StatusPending, At: now, ActorID: shipperID}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SideOf reports which participant userID is, or SideNone.
func (r *Request) SideOf(userID string) Side {
	switch {
	case userID == "":
		return SideNone
	case userID == r.DriverID:
		return SideDriver
	case userID == r.ShipperID:
		return SideShipper
	default:
		return SideNone
	}
}

// IsParticipant reports whether userID is the trip driver or the shipper.
func (r *Request) IsParticipant(userID string) bool {
	return r.SideOf(userID) != SideNone
}

// OtherParticipant returns the counterpart of userID, or "" when userID is not a participant.
func (r *Request) OtherParticipant(userID string) string {
	switch r.SideOf(userID) {
	case SideDriver:
		return r.ShipperID
	case SideShipper:
		return r.DriverID
	default:
		return ""
	}
}

// CheckTransition reports whether the lifecycle allows moving to next.
func (r *Request) CheckTransition(next Status) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	return nil
}

// Transition applies next and appends a timeline entry. On an illegal
// transition the request is left untouched.
func (r *Request) Transition(next Status, actorID, note string, loc *geo.Point, at time.Time) (TimelineEntry, error) {
	if err := r.CheckTransition(next); err != nil {
		return TimelineEntry{}, err
	}
	note = strings.TrimSpace(note)
	if len([]rune(note)) > MaxNoteLength {
		return TimelineEntry{}, ErrNoteTooLong
	}
	if loc != nil {
		if err := loc.Validate(); err != nil {
			return TimelineEntry{}, err
		}
	}

	entry := TimelineEntry{Status: next, At: at.UTC(), ActorID: actorID, Note: note, Location: loc}
	r.Status = next
	r.Timeline = append(r.Timeline, entry)
	r.UpdatedAt = entry.At
	return entry, nil
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	cp := *r
	if r.LastMessageAt != nil {
		t := *r.LastMessageAt
		cp.LastMessageAt = &t
	}
	cp.Timeline = make([]TimelineEntry, len(r.Timeline))
	for i, e := range r.Timeline {
		if e.Location != nil {
			l := *e.Location
			e.Location = &l
		}
		cp.Timeline[i] = e
	}
	return &cp
}
