package domain

// Status is the lifecycle state of a job
type Status string

const (
	StatusPending               Status = "pending"
	StatusAssigned              Status = "assigned"
	StatusStarted               Status = "started"
	StatusCompleted             Status = "completed"
	StatusNotCarriedOutCustomer Status = "not_carried_out_customer"
	StatusWithdrawBefore24      Status = "withdrawbefore24"
	StatusWithdrawAfter24       Status = "withdrawafter24"
	StatusTimedOut              Status = "timedout"
)

// AllStatuses lists every defined status in lifecycle order
var AllStatuses = []Status{
	StatusPending,
	StatusAssigned,
	StatusStarted,
	StatusCompleted,
	StatusNotCarriedOutCustomer,
	StatusWithdrawBefore24,
	StatusWithdrawAfter24,
	StatusTimedOut,
}

// Valid reports whether s is one of the defined statuses
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusNotCarriedOutCustomer, StatusWithdrawBefore24, StatusWithdrawAfter24:
		return true
	}
	return false
}

// Open reports whether the job still occupies the customer's or translator's calendar
func (s Status) Open() bool {
	return s == StatusPending || s == StatusAssigned || s == StatusStarted
}

// ParseStatus validates raw input at the API edge
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: "unknown status " + raw}
	}
	return s, nil
}
