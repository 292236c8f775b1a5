package notify

import (
	"strings"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

// TagFilter is one element of a push tag expression. Either the predicate
// fields or Operator are set.
type TagFilter struct {
	Key      string `json:"key,omitempty"`
	Relation string `json:"relation,omitempty"`
	Value    string `json:"value,omitempty"`
	Operator string `json:"operator,omitempty"`
}

// TagExpression addresses users by lowercased email, OR-combined
func TagExpression(users []domain.User) []TagFilter {
	out := make([]TagFilter, 0, 2*len(users))
	for i, u := range users {
		if i > 0 {
			out = append(out, TagFilter{Operator: "OR"})
		}
		out = append(out, TagFilter{Key: "email", Relation: "=", Value: strings.ToLower(u.Email)})
	}
	return out
}

// TagEmails returns the email values of an expression
func TagEmails(tags []TagFilter) []string {
	var out []string
	for _, t := range tags {
		if t.Key == "email" {
			out = append(out, t.Value)
		}
	}
	return out
}
