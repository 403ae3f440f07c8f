package middleware

import (
	"context"
	"strings"

	"campusmarket/internal/app/commands"
	"campusmarket/internal/app/queries"
	"campusmarket/internal/domain/shared/fault"
)

// ErrUnauthenticated is returned for messages dispatched without an actor.
var ErrUnauthenticated = fault.New(fault.KindForbidden, "middleware: authenticated user required")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorScoped is implemented by messages issued on behalf of a user.
type ActorScoped interface {
	Actor() string
}

// RequireActor rejects actor-scoped messages that carry no user.
type RequireActor struct{}

func (RequireActor) Authorize(ctx context.Context, message any) error {
	scoped, ok := message.(ActorScoped)
	if !ok {
		return nil
	}
	if strings.TrimSpace(scoped.Actor()) == "" {
		return ErrUnauthenticated
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
