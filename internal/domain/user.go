package domain

// User is the identity attached to authenticated requests, as reported by
// the external identity service.
type User struct {
	ID    string
	Email string
}

// Profile is the locally stored per-user profile row.
type Profile struct {
	UserID      string
	HasPassword bool
}
