package domain

import (
	"slices"
	"strings"
)

// Role is a user's account type
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTranslator Role = "translator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Level is a translator's qualification
type Level string

const (
	LevelCertified       Level = "certified"
	LevelCertifiedLaw    Level = "certified_law"
	LevelCertifiedHealth Level = "certified_health"
	LevelLayman          Level = "layman"
	LevelReadCourses     Level = "read_courses"
)

// AllLevels lists every translator level
var AllLevels = []Level{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth, LevelLayman, LevelReadCourses}

// User is a customer, translator or admin
type User struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	Mobile             string   `json:"mobile,omitempty"`
	Role               Role     `json:"role"`
	Gender             Gender   `json:"gender,omitempty"`
	Town               string   `json:"town,omitempty"`
	Languages          []string `json:"languages,omitempty"`
	Level              Level    `json:"level,omitempty"`
	TranslatorType     string   `json:"translator_type,omitempty"`
	ConsumerType       string   `json:"consumer_type,omitempty"`
	NotGetEmergency    bool     `json:"not_get_emergency"`
	NotGetNighttime    bool     `json:"not_get_nighttime"`
	NotGetNotification bool     `json:"not_get_notification"`
}

func (u *User) IsCustomer() bool   { return u.Role == RoleCustomer }
func (u *User) IsTranslator() bool { return u.Role == RoleTranslator }
func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin || u.Role == RoleSuperAdmin }

// Tier returns the translator's payment tier
func (u *User) Tier() Tier {
	return TierForTranslatorType(u.TranslatorType)
}

// Speaks reports whether language is in the translator's language set
func (u *User) Speaks(language string) bool {
	return slices.ContainsFunc(u.Languages, func(l string) bool {
		return strings.EqualFold(l, language)
	})
}
