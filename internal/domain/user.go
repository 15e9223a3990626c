package domain

import "time"

// Organization es la empresa de transporte o el operador de parqueo al que pertenece un usuario.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	DisplayName  string        `json:"display_name,omitempty"`
	Role         Role          `json:"role"`
	Organization *Organization `json:"organization,omitempty"`
	AvatarURL    string        `json:"avatar_url,omitempty"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
}

// UserPatch describe una actualizacion parcial; los campos nil no se tocan.
type UserPatch struct {
	Email        *string
	DisplayName  *string
	Role         *Role
	Organization *Organization
	AvatarURL    *string
}

// Clone devuelve una copia que no comparte la Organization con u.
func (u User) Clone() User {
	if u.Organization != nil {
		org := *u.Organization
		u.Organization = &org
	}
	return u
}

// Apply aplica el patch sobre una copia del usuario (merge superficial).
func (p UserPatch) Apply(u User) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Organization != nil {
		org := *p.Organization
		u.Organization = &org
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	return u
}
