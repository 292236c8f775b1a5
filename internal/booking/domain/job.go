package domain

import "time"

// Gender is a job's interpreter gender requirement or a user's gender
type Gender string

const (
	GenderAny    Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Certification is the job's qualification requirement
type Certification string

const (
	CertificationNone         Certification = ""
	CertificationNormal       Certification = "normal"
	CertificationYes          Certification = "yes"
	CertificationLaw          Certification = "law"
	CertificationHealth       Certification = "health"
	CertificationBoth         Certification = "both"
	CertificationNormalLaw    Certification = "n_law"
	CertificationNormalHealth Certification = "n_health"
)

// Tier is the payment tier shared by jobs (job_type) and translators
type Tier string

const (
	TierPaid   Tier = "paid"
	TierRWS    Tier = "rws"
	TierUnpaid Tier = "unpaid"
)

// Job is one interpretation booking
type Job struct {
	ID                   string        `db:"id" json:"id"`
	CustomerID           string        `db:"customer_id" json:"customer_id"`
	Status               Status        `db:"status" json:"status"`
	Language             string        `db:"language" json:"language"`
	Immediate            bool          `db:"immediate" json:"immediate"`
	Due                  time.Time     `db:"due" json:"due"`
	Duration             int           `db:"duration" json:"duration"`
	Gender               Gender        `db:"gender" json:"gender,omitempty"`
	Certification        Certification `db:"certified" json:"certified,omitempty"`
	PhoneType            bool          `db:"customer_phone_type" json:"customer_phone_type"`
	PhysicalType         bool          `db:"customer_physical_type" json:"customer_physical_type"`
	Town                 string        `db:"town" json:"town,omitempty"`
	Address              string        `db:"address" json:"address,omitempty"`
	Instructions         string        `db:"instructions" json:"instructions,omitempty"`
	JobType              Tier          `db:"job_type" json:"job_type"`
	Reference            string        `db:"reference" json:"reference,omitempty"`
	AdminComments        string        `db:"admin_comments" json:"admin_comments,omitempty"`
	SessionTime          string        `db:"session_time" json:"session_time,omitempty"`
	CustomerEmail        string        `db:"user_email" json:"user_email,omitempty"`
	SpecificTranslatorID string        `db:"specific_translator_id" json:"specific_translator_id,omitempty"`
	ReopenedFrom         string        `db:"reopened_from" json:"reopened_from,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
	WillExpireAt         time.Time     `db:"will_expire_at" json:"will_expire_at"`
	WithdrawAt           *time.Time    `db:"withdraw_at" json:"withdraw_at,omitempty"`
	EndAt                *time.Time    `db:"end_at" json:"end_at,omitempty"`
	Ignore               bool          `db:"ignore" json:"ignore"`
	IgnoreExpired        bool          `db:"ignore_expired" json:"ignore_expired"`
	Flagged              bool          `db:"flagged" json:"flagged"`
	ManuallyHandled      bool          `db:"manually_handled" json:"manually_handled"`
	ByAdmin              bool          `db:"by_admin" json:"by_admin"`
}

// PhysicalOnly is an on-site booking with no phone option
func (j *Job) PhysicalOnly() bool {
	return j.PhysicalType && !j.PhoneType
}

// PhoneOnly is a phone booking with no on-site option
func (j *Job) PhoneOnly() bool {
	return j.PhoneType && !j.PhysicalType
}

// Ends returns the end of the booked interval [Due, Due+Duration)
func (j *Job) Ends() time.Time {
	return j.Due.Add(time.Duration(j.Duration) * time.Minute)
}

// Clone returns a shallow copy safe to mutate without touching j
func (j *Job) Clone() *Job {
	c := *j
	if j.WithdrawAt != nil {
		t := *j.WithdrawAt
		c.WithdrawAt = &t
	}
	if j.EndAt != nil {
		t := *j.EndAt
		c.EndAt = &t
	}
	return &c
}

// Assignment links a translator to a job. A row is active while both
// CancelAt and CompletedAt are nil; at most one active row exists per job.
type Assignment struct {
	ID           string     `db:"id" json:"id"`
	JobID        string     `db:"job_id" json:"job_id"`
	TranslatorID string     `db:"translator_id" json:"translator_id"`
	AssignedAt   time.Time  `db:"assigned_at" json:"assigned_at"`
	CancelAt     *time.Time `db:"cancel_at" json:"cancel_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy  string     `db:"completed_by" json:"completed_by,omitempty"`
}

// Active reports whether the assignment is still open
func (a *Assignment) Active() bool {
	return a.CancelAt == nil && a.CompletedAt == nil
}
