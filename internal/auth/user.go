package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// Role is the closed set of account kinds.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleStudent
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleStudent:
		return "student"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// ParseRole converts the wire name of a role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "student":
		return RoleStudent, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleAdmin, RoleStudent:
		return []byte(r.String()), nil
	}
	return nil, fmt.Errorf("invalid role %d", uint8(r))
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is an authenticated identity.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type account struct {
	password string
	user     User
}

// Directory is the fixed table of demo credentials.
type Directory struct {
	accounts map[string]account
}

// DemoPassword is shared by every demo account.
const DemoPassword = "password"

// NewDemoDirectory returns the admin and the two demo students. Student ids
// match the roster demo data.
func NewDemoDirectory() *Directory {
	d := &Directory{accounts: map[string]account{}}
	d.add(User{ID: "admin-1", Name: "Admin User", Email: "admin@example.com", Role: RoleAdmin}, DemoPassword)
	d.add(User{ID: "student-1", Name: "John Doe", Email: "john@example.com", Role: RoleStudent}, DemoPassword)
	d.add(User{ID: "student-2", Name: "Jane Smith", Email: "jane@example.com", Role: RoleStudent}, DemoPassword)
	return d
}

func (d *Directory) add(u User, password string) {
	d.accounts[strings.ToLower(u.Email)] = account{password: password, user: u}
}

// Check returns the user for a matching email and password.
func (d *Directory) Check(email, password string) (User, bool) {
	acc, ok := d.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, false
	}
	if subtle.ConstantTimeCompare([]byte(acc.password), []byte(password)) != 1 {
		return User{}, false
	}
	return acc.user, true
}
