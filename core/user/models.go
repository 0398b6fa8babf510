package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classroom/core"
)

type Role string

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// DefaultName is the name of a profile whose identity has neither a display name nor an email.
const DefaultName = "Usuário"

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleStudent
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"` // UTC
	UpdatedAt time.Time `json:"updatedAt"` // UTC
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}

// NameFor derives a profile name from an identity: display name, else email local part, else DefaultName.
func NameFor(displayName, email string) string {
	if name := core.CleanString(displayName); name != "" {
		return name
	}
	if local := strings.SplitN(core.CleanString(email), "@", 2)[0]; local != "" {
		return local
	}
	return DefaultName
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name            string `json:"name" validate:"notblank"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"notblank"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	ClassID         string `json:"classId"` // optional class to enroll in once registered
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.ClassID = core.CleanString(nu.ClassID)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Blank fields keep the current values.
type UpdateUser struct {
	Name  string  `json:"name"`
	Email string  `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone"`
	Role  Role    `json:"role" validate:"omitempty,oneof=admin student"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	uu.Name = core.CleanString(uu.Name)
	uu.Email = core.CleanString(uu.Email, true /* lower */)
	if uu.Phone != nil {
		phone := core.CleanString(*uu.Phone)
		uu.Phone = &phone
	}
	return validate.Struct(uu)
}

func (uu UpdateUser) IsEmpty() bool {
	return uu.Name == "" && uu.Email == "" && uu.Phone == nil && uu.Role == ""
}

// ApplyTo returns usr with the update applied.
func (uu UpdateUser) ApplyTo(usr User) User {
	if uu.Name != "" {
		usr.Name = uu.Name
	}
	if uu.Email != "" {
		usr.Email = uu.Email
	}
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	return usr
}

// Credentials are what a user signs in with.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return validate.Struct(c)
}
