package domain

// User is an account holder in the system. The salt is stored alongside the
// hash so credentials can be re-verified without re-deriving it.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	Salt         string
}
