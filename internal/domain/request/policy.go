package request

import (
	"errors"
	"strings"
)

// Policy decides which participant may drive which transition.
type Policy string

const (
	// PolicyPermissive lets either participant trigger any legal transition.
	PolicyPermissive Policy = "permissive"
	// PolicyStrict binds transitions to sides: the driver runs the lifecycle,
	// the shipper may cancel, both may dispute.
	PolicyStrict Policy = "strict"
)

var (
	ErrInvalidPolicy  = errors.New("invalid transition policy")
	ErrSideNotAllowed = errors.New("participant is not allowed to apply this status")
)

var strictSides = map[Status][]Side{
	StatusAccepted:    {SideDriver},
	StatusRejected:    {SideDriver},
	StatusPickupReady: {SideDriver},
	StatusInTransit:   {SideDriver},
	StatusDelivered:   {SideDriver},
	StatusCancelled:   {SideShipper},
	StatusDisputed:    {SideDriver, SideShipper},
}

func ParsePolicy(in string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(in))); p {
	case "":
		return PolicyPermissive, nil
	case PolicyPermissive, PolicyStrict:
		return p, nil
	default:
		return "", ErrInvalidPolicy
	}
}

// Allows reports whether side may move a request into next.
func (p Policy) Allows(side Side, next Status) bool {
	if side == SideNone {
		return false
	}
	if p != PolicyStrict {
		return true
	}
	for _, s := range strictSides[next] {
		if s == side {
			return true
		}
	}
	return false
}
