package booking

import (
	"time"

	"github.com/slotable/service-booking/internal/platform/auth"
)

// DenyReason classifies why a change request was denied.
type DenyReason string

const (
	ReasonInactivePrincipal DenyReason = "inactive_principal"
	ReasonInsufficientRole  DenyReason = "insufficient_role"
)

// ChangeRequest describes the mutations a principal is asking for. Nil
// fields are not requested.
type ChangeRequest struct {
	TargetStatus *BookingStatus
	ScheduledAt  *time.Time
	CustomerNote *string
	ProviderNote *string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Decide is the authorization gate for booking mutations. It is a pure
// function of the principal, the booking snapshot and the requested change:
// no persistence access, no side effects. Every requested mutation must be
// permitted or the whole request is denied.
func Decide(p auth.Principal, b *Booking, req ChangeRequest) Decision {
	if !p.Active {
		return deny(ReasonInactivePrincipal)
	}

	if req.TargetStatus != nil {
		if d := decideStatusChange(p, b, *req.TargetStatus); !d.Allowed {
			return d
		}
	}
	if req.ScheduledAt != nil {
		if d := decideSchedule(p, b); !d.Allowed {
			return d
		}
	}
	if req.CustomerNote != nil {
		if d := decideNote(p, b, auth.RoleCustomer); !d.Allowed {
			return d
		}
	}
	if req.ProviderNote != nil {
		if d := decideNote(p, b, auth.RoleProvider); !d.Allowed {
			return d
		}
	}

	return allow()
}

// decideStatusChange applies the role rules for a status transition. The
// transition table itself gates every role, administrators included.
func decideStatusChange(p auth.Principal, b *Booking, target BookingStatus) Decision {
	if !b.Status().CanTransitionTo(target) {
		return deny(ReasonInsufficientRole)
	}

	switch p.Role {
	case auth.RoleAdmin, auth.RoleSuperAdmin:
		return allow()

	case auth.RoleProvider:
		if b.ProviderID() != p.ID {
			return deny(ReasonInsufficientRole)
		}
		switch target {
		case StatusConfirmed, StatusCompleted, StatusCancelled:
			return allow()
		}
		return deny(ReasonInsufficientRole)

	case auth.RoleCustomer:
		if b.CustomerID() != p.ID {
			return deny(ReasonInsufficientRole)
		}
		if target != StatusCancelled {
			return deny(ReasonInsufficientRole)
		}
		if b.Status() != StatusPending && b.Status() != StatusConfirmed {
			return deny(ReasonInsufficientRole)
		}
		return allow()
	}

	return deny(ReasonInsufficientRole)
}

// decideSchedule permits schedule mutation to the owning provider and to
// administrators, only while the booking is not terminal.
func decideSchedule(p auth.Principal, b *Booking) Decision {
	if b.Status().IsTerminal() {
		return deny(ReasonInsufficientRole)
	}
	if p.Role.IsAdmin() {
		return allow()
	}
	if p.Role == auth.RoleProvider && b.ProviderID() == p.ID {
		return allow()
	}
	return deny(ReasonInsufficientRole)
}

// decideNote permits a principal to write only their own role's note field.
// Administrators may write either, and are the only ones who may annotate a
// booking in a terminal status.
func decideNote(p auth.Principal, b *Booking, field auth.Role) Decision {
	if p.Role.IsAdmin() {
		return allow()
	}
	if b.Status().IsTerminal() {
		return deny(ReasonInsufficientRole)
	}

	switch field {
	case auth.RoleCustomer:
		if p.Role == auth.RoleCustomer && b.CustomerID() == p.ID {
			return allow()
		}
	case auth.RoleProvider:
		if p.Role == auth.RoleProvider && b.ProviderID() == p.ID {
			return allow()
		}
	}
	return deny(ReasonInsufficientRole)
}

// CanView reports whether the principal may read the booking: its customer,
// its provider, or an administrator.
func CanView(p auth.Principal, b *Booking) bool {
	if !p.Active {
		return false
	}
	if p.Role.IsAdmin() {
		return true
	}
	return b.CustomerID() == p.ID || b.ProviderID() == p.ID
}
