package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAllowList(t *testing.T) {
	al := ParseAllowList(" Admin@Nort.com, ,boss@nort.com,,admin@nort.com ")
	assert.Equal(t, []string{"admin@nort.com", "boss@nort.com"}, al.Emails())
	assert.Equal(t, 2, al.Len())
	assert.Equal(t, 0, ParseAllowList("").Len())
}

func TestAllowList(t *testing.T) {
	al := ParseAllowList("admin@nort.com")

	tests := []struct {
		name      string
		usr       User
		fallbacks []string
		wantRole  Role
	}{
		{"allowed email", User{Email: "ADMIN@nort.com ", Role: RoleStudent}, nil, RoleAdmin},
		{"stored role kept", User{Email: "student@nort.com", Role: RoleAdmin}, nil, RoleAdmin},
		{"stored student", User{Email: "student@nort.com", Role: RoleStudent}, nil, RoleStudent},
		{"fallback email when profile has none", User{Role: RoleStudent}, []string{"", "admin@nort.com"}, RoleAdmin},
		{"fallback ignored when profile has one", User{Email: "student@nort.com", Role: RoleStudent}, []string{"admin@nort.com"}, RoleStudent},
		{"unknown role", User{Email: "x@nort.com", Role: "teacher"}, nil, RoleStudent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := al.Apply(tc.usr, tc.fallbacks...)
			assert.Equal(t, tc.wantRole, got.Role)
			assert.Equal(t, tc.usr.Email, got.Email)
		})
	}

	assert.True(t, al.Contains("admin@NORT.com"))
	assert.False(t, al.Contains(""))
	assert.Equal(t, RoleAdmin, al.RoleFor("admin@nort.com"))
	assert.Equal(t, RoleStudent, al.RoleFor("other@nort.com"))
}

func TestNameFor(t *testing.T) {
	assert.Equal(t, "Maria", NameFor(" Maria ", "m@nort.com"))
	assert.Equal(t, "maria.silva", NameFor("", "maria.silva@nort.com"))
	assert.Equal(t, DefaultName, NameFor("", ""))
}

func TestUpdateUserApplyTo(t *testing.T) {
	phone := "11 9999"
	usr := User{ID: "u1", Name: "Maria", Email: "m@nort.com", Role: RoleStudent}
	got := UpdateUser{Email: "maria@nort.com", Phone: &phone}.ApplyTo(usr)
	assert.Equal(t, User{ID: "u1", Name: "Maria", Email: "maria@nort.com", Role: RoleStudent, Phone: phone}, got)
	assert.True(t, UpdateUser{}.IsEmpty())
}
