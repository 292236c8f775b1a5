package transition

import (
	"slices"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

// Action names a lifecycle operation
type Action string

const (
	ActionAccept           Action = "accept"
	ActionStart            Action = "start"
	ActionCustomerCancel   Action = "customer_cancel"
	ActionTranslatorCancel Action = "translator_cancel"
	ActionEnd              Action = "end"
	ActionCustomerNotCall  Action = "customer_not_call"
	ActionReopen           Action = "reopen"
	ActionTimeout          Action = "timeout"
	ActionAdminUpdate      Action = "admin_update"
)

// lifecycle lists the statuses each operation may start from
var lifecycle = map[Action][]domain.Status{
	ActionAccept:           {domain.StatusPending},
	ActionStart:            {domain.StatusAssigned},
	ActionCustomerCancel:   {domain.StatusPending, domain.StatusAssigned, domain.StatusStarted},
	ActionTranslatorCancel: {domain.StatusAssigned},
	ActionEnd:              {domain.StatusStarted},
	ActionCustomerNotCall:  {domain.StatusAssigned, domain.StatusStarted},
	ActionReopen: {
		domain.StatusAssigned,
		domain.StatusStarted,
		domain.StatusCompleted,
		domain.StatusNotCarriedOutCustomer,
		domain.StatusWithdrawBefore24,
		domain.StatusWithdrawAfter24,
		domain.StatusTimedOut,
	},
	ActionTimeout: {domain.StatusPending},
}

// Allowed reports whether action may run on a job in status
func Allowed(action Action, status domain.Status) bool {
	return slices.Contains(lifecycle[action], status)
}

// Require is Allowed as an error
func Require(action Action, status domain.Status) error {
	if Allowed(action, status) {
		return nil
	}
	return &domain.PreconditionError{
		Rule:    string(action) + "_not_allowed",
		Message: "cannot " + string(action) + " a job that is " + string(status),
	}
}
