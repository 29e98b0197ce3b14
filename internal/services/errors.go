package services

import "errors"

// Messages of these errors reach the user verbatim through the status line.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("an account with this email already exists")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrChallengeFailed    = errors.New("verification challenge failed")
	ErrChallengeMissing   = errors.New("verification challenge not completed")
	ErrChallengeExpired   = errors.New("verification challenge expired")
	ErrInvalidIDToken     = errors.New("invalid identity token")
)
