package domain

// UnmeteredCredits is the sentinel balance reported when credit
// enforcement is disabled for the deployment.
const UnmeteredCredits int64 = -1

// Balance is one user's credit account.
type Balance struct {
	UserID  string
	Credits int64
}
