package middleware

import (
	"context"
	"log/slog"
	"time"

	"campusmarket/internal/app/commands"
	"campusmarket/internal/domain/shared/fault"
)

// Logging records each dispatched command with its outcome. Caller-fixable
// failures log at Info, everything else unexpected at Error.
func Logging(logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		if logger == nil {
			return nextFn
		}
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			result, err := nextFn(ctx, cmd)
			attrs := []any{"command", cmd.Key(), "duration", time.Since(start)}
			if scoped, ok := cmd.(ActorScoped); ok {
				attrs = append(attrs, "actor", scoped.Actor())
			}
			switch kind := fault.KindOf(err); {
			case err == nil:
				logger.Debug("command handled", attrs...)
			case kind == "" || kind == fault.KindTransient:
				logger.Error("command failed", append(attrs, "error", err)...)
			default:
				logger.Info("command rejected", append(attrs, "error", err, "kind", string(kind))...)
			}
			return result, err
		})
	}
}
