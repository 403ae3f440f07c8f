package memory

import (
	"context"
	"strings"

	"campusmarket/internal/app/policies"
	"campusmarket/internal/domain/shared/fault"
)

var ErrUnknownToken = fault.New(fault.KindForbidden, "memory: unknown access token")

// StaticTokens authenticates bearer tokens against a fixed token->user map,
// parsed from "token:user,token:user".
type StaticTokens struct {
	users map[string]string
}

func NewStaticTokens(pairs []string) *StaticTokens {
	users := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		token, user, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || token == "" || user == "" {
			continue
		}
		users[token] = user
	}
	return &StaticTokens{users: users}
}

func (s *StaticTokens) Authenticate(ctx context.Context, token string) (string, error) {
	user, ok := s.users[strings.TrimSpace(token)]
	if !ok {
		return "", ErrUnknownToken
	}
	return user, nil
}

var _ policies.Authenticator = (*StaticTokens)(nil)
