package transition

import (
	"context"
	"sync"
	"time"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
)

type pushed struct {
	userID string
	kind   notify.Kind
	text   string
	at     time.Time
}

// recorder captures what the engine asked the dispatcher to send
type recorder struct {
	mu         sync.Mutex
	texts      *notify.Catalogue
	broadcasts map[string][]string
	pushes     []pushed
	emails     []notify.EmailMessage
}

func newRecorder() *recorder {
	return &recorder{texts: notify.NewCatalogue(time.UTC), broadcasts: make(map[string][]string)}
}

func (r *recorder) NotifyTranslators(_ context.Context, job *domain.Job, translators []domain.User) notify.Fanout {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range translators {
		r.broadcasts[job.ID] = append(r.broadcasts[job.ID], t.ID)
	}
	return notify.Fanout{Immediate: len(translators)}
}

func (r *recorder) NotifyUser(_ context.Context, _ *domain.Job, user *domain.User, kind notify.Kind, text string) bool {
	if user == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, pushed{userID: user.ID, kind: kind, text: text})
	return true
}

func (r *recorder) RemindAt(_ context.Context, _ *domain.Job, user *domain.User, text string, at time.Time) bool {
	if user == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, pushed{userID: user.ID, kind: notify.KindSessionStartRemind, text: text, at: at})
	return true
}

func (r *recorder) SendEmails(_ context.Context, msgs ...notify.EmailMessage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, msgs...)
	return len(msgs)
}

func (r *recorder) Texts() *notify.Catalogue {
	return r.texts
}

func (r *recorder) emailsTo(addr string) []notify.EmailMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.EmailMessage
	for _, m := range r.emails {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) quiet() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.emails) == 0 && len(r.pushes) == 0 && len(r.broadcasts) == 0
}
