package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

func sampleJob() *domain.Job {
	return &domain.Job{
		ID:        "42",
		Language:  "ar",
		Duration:  90,
		Due:       time.Date(2026, 6, 10, 11, 30, 0, 0, time.UTC),
		PhoneType: true,
		Town:      "Uppsala",
	}
}

func TestCatalogueLanguage(t *testing.T) {
	c := NewCatalogue(time.UTC)

	name := c.Language("ar")
	assert.NotEmpty(t, name)
	assert.NotEqual(t, "ar", name)
	assert.Equal(t, "!!", c.Language("!!"))
}

func TestCatalogueTexts(t *testing.T) {
	c := NewCatalogue(time.UTC)
	job := sampleJob()
	lang := c.Language("ar")

	assert.Equal(t, "Ny bokning för "+lang+"tolk 90min 2026-06-10 11:30", c.SuitableJob(job))

	job.Immediate = true
	assert.Equal(t, "Ny akutbokning för "+lang+"tolk 90min", c.SuitableJob(job))

	assert.Contains(t, c.AcceptDoubleBooked(job), "2026-06-10 11:30")
	assert.Contains(t, c.CancelWithin24h("+46 73 75 86 865"), "+46 73 75 86 865")
	assert.Contains(t, c.SessionReminder(job), "(telefon) kl 11:30 på 2026-06-10")

	job.PhysicalType = true
	assert.Contains(t, c.SessionReminder(job), "(på plats i Uppsala)")
	assert.Contains(t, c.AssignedByAdmin(job), "platstolkningen")
}

func TestCatalogueDueUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	assert.Equal(t, "2026-06-10 13:30", NewCatalogue(loc).Due(sampleJob()))
}

func TestCatalogueSMS(t *testing.T) {
	c := NewCatalogue(time.UTC)

	tests := []struct {
		name     string
		phone    bool
		physical bool
		want     string
		ok       bool
	}{
		{name: "phone only", phone: true, want: "Ny telefontolkning den 10.06.2026 kl 11:30, 01h 30min. Uppdrag #42.", ok: true},
		{name: "physical only", physical: true, want: "Ny platstolkning i Uppsala den 10.06.2026 kl 11:30, 01h 30min. Uppdrag #42.", ok: true},
		{name: "both uses phone template", phone: true, physical: true, want: "Ny telefontolkning", ok: true},
		{name: "neither sends nothing", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := sampleJob()
			job.PhoneType, job.PhysicalType = tt.phone, tt.physical

			text, ok := c.SMS(job)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Contains(t, text, tt.want)
			} else {
				assert.Empty(t, text)
			}
		})
	}
}

func TestTagExpression(t *testing.T) {
	users := []domain.User{{Email: "Anna@Example.com"}, {Email: "bo@example.com"}}

	raw, err := json.Marshal(TagExpression(users))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"key":"email","relation":"=","value":"anna@example.com"},
		{"operator":"OR"},
		{"key":"email","relation":"=","value":"bo@example.com"}
	]`, string(raw))

	assert.Equal(t, []string{"anna@example.com", "bo@example.com"}, TagEmails(TagExpression(users)))
	assert.Empty(t, TagExpression(nil))
}
