package domain

import "strings"

// Role es el conjunto cerrado de roles de la plataforma.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleCompanyAdmin   Role = "COMPANY_ADMIN"
	RoleParkingManager Role = "PARKING_MANAGER"
	RoleDriver         Role = "DRIVER"
	RoleCustomer       Role = "CUSTOMER"
)

// Roles lista todos los roles validos.
func Roles() []Role {
	return []Role{RoleAdmin, RoleCompanyAdmin, RoleParkingManager, RoleDriver, RoleCustomer}
}

// ParseRole normaliza s y devuelve el rol si pertenece al conjunto cerrado.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCompanyAdmin, RoleParkingManager, RoleDriver, RoleCustomer:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
