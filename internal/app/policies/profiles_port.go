package policies

import (
	"context"

	domainprofiles "campusmarket/internal/domain/profiles"
)

type ProfileDirectory interface {
	ByUserID(ctx context.Context, userID string) (*domainprofiles.Profile, error)
}

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}
