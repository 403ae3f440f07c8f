package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"campusmarket/internal/app/commands"
	"campusmarket/internal/domain/shared/fault"
)

// IdempotentCommand is implemented by commands that replay their first
// outcome when retried with the same key.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // pointer to the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	ErrorKind  string
	Error      string
	OccurredAt time.Time
}

// IdempotencyStore persists outcomes. Get reports found=false for unknown or
// expired keys.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays stored outcomes of keyed commands. Transient failures
// are not recorded so the caller's retry reaches the handler again.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			if key == "" {
				return nextFn(ctx, cmd)
			}
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, fault.Transient("load idempotency record", err)
			}
			if found {
				return replay(rec, idCmd, codec)
			}

			result, err := nextFn(ctx, cmd)
			record := IdempotencyRecord{
				Key:        key,
				OccurredAt: time.Now().UTC(),
			}
			if err != nil {
				kind := fault.KindOf(err)
				if kind == "" || kind == fault.KindTransient {
					return nil, err
				}
				record.ErrorKind = string(kind)
				record.Error = err.Error()
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				return nil, fault.Transient("save idempotency record", saveErr)
			}
			return result, nil
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Error != "" {
		return nil, fault.New(fault.Kind(rec.ErrorKind), rec.Error)
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
