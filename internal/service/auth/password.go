package auth

import "golang.org/x/crypto/bcrypt"

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	// Compare returns nil when password matches hashedPassword and an
	// error otherwise, including on mismatch.
	Compare(hashedPassword, password string) error
}

// BcryptVerifier is the bcrypt-backed PasswordVerifier used in production.
type BcryptVerifier struct{}

// NewBcryptVerifier returns a ready-to-use BcryptVerifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

func (v *BcryptVerifier) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

var _ PasswordVerifier = (*BcryptVerifier)(nil)
