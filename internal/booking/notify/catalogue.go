package notify

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

const (
	// PushTitle is the title shown above every push
	PushTitle = "DigitalTolk"

	smsDateLayout = "02.01.2006"
	smsTimeLayout = "15:04"
)

// Catalogue renders the Swedish texts of pushes, SMS, mail subjects and
// operation results.
type Catalogue struct {
	loc   *time.Location
	names display.Namer
}

// NewCatalogue renders dates in loc
func NewCatalogue(loc *time.Location) *Catalogue {
	if loc == nil {
		loc = time.UTC
	}
	return &Catalogue{loc: loc, names: display.Languages(language.Swedish)}
}

// Language returns the Swedish display name of a language code, or the
// code itself when it is not a known tag.
func (c *Catalogue) Language(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := c.names.Name(tag); name != "" {
		return name
	}
	return code
}

// Due renders a job's due time in the catalogue's timezone
func (c *Catalogue) Due(job *domain.Job) string {
	return job.Due.In(c.loc).Format(domain.DisplayLayout)
}

func (c *Catalogue) SuitableJob(job *domain.Job) string {
	if job.Immediate {
		return fmt.Sprintf("Ny akutbokning för %stolk %dmin", c.Language(job.Language), job.Duration)
	}
	return fmt.Sprintf("Ny bokning för %stolk %dmin %s", c.Language(job.Language), job.Duration, c.Due(job))
}

func (c *Catalogue) JobAccepted(job *domain.Job) string {
	return fmt.Sprintf("Din bokning för %s translators, %dmin, %s har accepterats av en tolk. Vänligen öppna appen för att se detaljer om tolken.",
		c.Language(job.Language), job.Duration, c.Due(job))
}

// CustomerCancelled is pushed to the translator of a job the customer withdrew
func (c *Catalogue) CustomerCancelled(job *domain.Job) string {
	return fmt.Sprintf("Kunden har avbokat bokningen för %stolk, %dmin, %s. Var god och kolla dina tidigare bokningar för detaljer.",
		c.Language(job.Language), job.Duration, c.Due(job))
}

// TranslatorCancelled is pushed to the customer when the translator gave the job back
func (c *Catalogue) TranslatorCancelled(job *domain.Job) string {
	return fmt.Sprintf("Er %stolk, %dmin %s, har avbokat tolkningen. Vi letar nu efter en ny tolk som kan ersätta denne. Tack.",
		c.Language(job.Language), job.Duration, c.Due(job))
}

func (c *Catalogue) JobExpired(job *domain.Job) string {
	return fmt.Sprintf("Tyvärr har ingen tolk accepterat er bokning: (%s, %dmin, %s). Vänligen pröva boka om tiden.",
		c.Language(job.Language), job.Duration, c.Due(job))
}

// SessionReminder reminds a party of an upcoming session
func (c *Catalogue) SessionReminder(job *domain.Job) string {
	local := job.Due.In(c.loc)
	clock, date := local.Format("15:04"), local.Format("2006-01-02")
	lang := c.Language(job.Language)

	if job.PhysicalType {
		return fmt.Sprintf("Detta är en påminnelse om att du har en %stolkning (på plats i %s) kl %s på %s som vara i %d min. Lycka till och kom ihåg att ge feedback efter utförd tolkning!",
			lang, job.Town, clock, date, job.Duration)
	}
	return fmt.Sprintf("Detta är en påminnelse om att du har en %stolkning (telefon) kl %s på %s som vara i %d min. Lycka till och kom ihåg att ge feedback efter utförd tolkning!",
		lang, clock, date, job.Duration)
}

// AssignedByAdmin tells a party that an admin assigned the session
func (c *Catalogue) AssignedByAdmin(job *domain.Job) string {
	kind := "telefontolkningen"
	if job.PhysicalType {
		kind = "platstolkningen"
	}
	local := job.Due.In(c.loc)
	return fmt.Sprintf("Du har nu fått %s för %s kl %s den %s. Vänligen säkerställ att du är förberedd för den tiden. Tack!",
		kind, c.Language(job.Language), local.Format("15:04"), local.Format("2006-01-02"))
}

func (c *Catalogue) AcceptSuccess(job *domain.Job) string {
	return fmt.Sprintf("Du har nu accepterat och fått bokningen för %stolk %dmin %s",
		c.Language(job.Language), job.Duration, c.Due(job))
}

func (c *Catalogue) AcceptAlreadyTaken(job *domain.Job) string {
	return fmt.Sprintf("Denna %stolkning %dmin %s har redan accepterats av annan tolk. Du har inte fått denna tolkning",
		c.Language(job.Language), job.Duration, c.Due(job))
}

func (c *Catalogue) AcceptDoubleBooked(job *domain.Job) string {
	return fmt.Sprintf("Du har redan en bokning den tiden %s. Du har inte fått denna tolkning", c.Due(job))
}

// CancelWithin24h directs a translator to phone support
func (c *Catalogue) CancelWithin24h(supportPhone string) string {
	return fmt.Sprintf("Du kan inte avboka en bokning som sker inom 24 timmar genom DigitalTolk. Vänligen ring på %s och gör din avbokning over telefon. Tack", supportPhone)
}

// SMS returns the text-message template for a job and false when the job
// is neither a phone nor a physical booking.
func (c *Catalogue) SMS(job *domain.Job) (string, bool) {
	local := job.Due.In(c.loc)
	date, clock := local.Format(smsDateLayout), local.Format(smsTimeLayout)
	duration := domain.ConvertToHoursMins(job.Duration)

	switch {
	case job.PhysicalOnly():
		return fmt.Sprintf("Ny platstolkning i %s den %s kl %s, %s. Uppdrag #%s. Öppna appen för att acceptera.",
			job.Town, date, clock, duration, job.ID), true
	case job.PhoneType:
		return fmt.Sprintf("Ny telefontolkning den %s kl %s, %s. Uppdrag #%s. Öppna appen för att acceptera.",
			date, clock, duration, job.ID), true
	default:
		return "", false
	}
}

// Mail subjects

func SubjectJobCreated(jobID string) string {
	return "Vi har mottagit er tolkbokning. Bokningsnr: #" + jobID
}

func SubjectJobAccepted(jobID string) string {
	return fmt.Sprintf("Bekräftelse - tolk har accepterat er bokning (bokning # %s)", jobID)
}

func SubjectSessionEnded(jobID string) string {
	return "Information om avslutad tolkning för bokningsnummer # " + jobID
}

func SubjectJobCancelled(jobID string) string {
	return "Avbokning av bokningsnr: #" + jobID
}

func SubjectTranslatorChanged(jobID string) string {
	return "Meddelande om tilldelning av tolkuppdrag för uppdrag # " + jobID
}

func SubjectJobChanged(jobID string) string {
	return "Meddelande om ändring av tolkbokning för uppdrag # " + jobID
}

func (c *Catalogue) SubjectReopened(job *domain.Job) string {
	return fmt.Sprintf("Vi har nu återöppnat er bokning av %stolk för bokning #%s", c.Language(job.Language), job.ID)
}

// Templates keyed by the mail renderer
const (
	TemplateJobCreated        = "emails.job-created"
	TemplateJobAccepted       = "emails.job-accepted"
	TemplateSessionEnded      = "emails.session-ended"
	TemplateJobCancelled      = "emails.job-cancelled"
	TemplateTranslatorCancel  = "emails.job-cancel-translator"
	TemplateTranslatorChanged = "emails.job-changed-translator"
	TemplateTranslatorRemoved = "emails.job-changed-translator-old"
	TemplateDateChanged       = "emails.job-changed-date"
	TemplateLanguageChanged   = "emails.job-changed-lang"
	TemplateJobAssigned       = "emails.job-assigned"
	TemplateJobReopened       = "emails.job-reopened"
)

// Role-specific framing of the session-ended mail
const (
	ForInvoice = "faktura"
	ForPayroll = "lön"
)
