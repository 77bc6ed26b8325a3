package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User validation errors.
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrEmptyUserName       = errors.New("name cannot be empty")
	ErrUserNameTooLong     = errors.New("name must be at most 255 characters long")
	ErrEmptyEmail          = errors.New("email cannot be empty")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyPassword       = errors.New("password cannot be empty")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

// User represents a registered user of the application.
type User struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Password        string     `json:"-"` // Plaintext, held only between registration and hashing
	HashedPassword  string     `json:"-"` // Never exposed in JSON
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewUser creates a new User with the given name, email and plaintext
// password. The caller is responsible for hashing the password before the
// user is persisted.
func NewUser(name, email, password string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Name == "" {
		return ErrEmptyUserName
	}
	if len(u.Name) > 255 {
		return ErrUserNameTooLong
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}
	if !validEmailFormat(u.Email) {
		return ErrInvalidEmail
	}

	if u.Password != "" {
		if len(u.Password) < 8 {
			return ErrPasswordTooShort
		}
		// bcrypt truncates input beyond 72 bytes
		if len(u.Password) > 72 {
			return ErrPasswordTooLong
		}
	} else if u.HashedPassword == "" {
		return ErrEmptyPassword
	}

	return nil
}

// validEmailFormat performs a basic structural check: a local part, an @,
// and a dotted domain. Full RFC 5322 validation is left to the request
// validation layer.
func validEmailFormat(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}

	domain := email[at+1:]
	dot := strings.IndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}
