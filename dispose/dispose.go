// Package dispose releases values according to the capabilities they expose.
//
// A value is synchronously releasable when it implements io.Closer and
// asynchronously releasable when it implements AsyncCloser. A value with
// neither capability needs no release and is ignored.
package dispose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// AsyncCloser is implemented by values whose release may take a while and
// honours cancellation.
type AsyncCloser interface {
	CloseAsync(ctx context.Context) error
}

// Preference selects between the release capabilities of a value.
type Preference struct {
	// PreferAsync picks CloseAsync when a value offers both capabilities.
	PreferAsync bool
	// Block waits for an asynchronous release instead of firing and forgetting.
	Block bool
}

// Capable reports whether v exposes any release capability.
func Capable(v any) bool {
	switch v.(type) {
	case io.Closer, AsyncCloser:
		return true
	}
	return false
}

// Value releases v. Errors from fire-and-forget releases are logged on
// logger (when non-nil) because nobody is left to receive them.
func Value(ctx context.Context, v any, pref Preference, logger *slog.Logger) error {
	async, isAsync := v.(AsyncCloser)
	closer, isSync := v.(io.Closer)

	switch {
	case isAsync && (pref.PreferAsync || !isSync):
		if pref.Block {
			return async.CloseAsync(ctx)
		}
		go func() {
			if err := async.CloseAsync(context.WithoutCancel(ctx)); err != nil && logger != nil {
				logger.Warn("Asynchronous release failed.", "type", typeName(v), "error", err)
			}
		}()
		return nil
	case isSync:
		return closer.Close()
	}
	return nil
}

// Guard makes a release idempotent. The zero value is ready to use.
type Guard struct {
	once sync.Once
	done atomic.Bool
}

// Do runs release the first time it is called and reports whether this call
// ran it.
func (g *Guard) Do(release func()) bool {
	ran := false
	g.once.Do(func() {
		g.done.Store(true)
		release()
		ran = true
	})
	return ran
}

// Done reports whether the release already ran.
func (g *Guard) Done() bool {
	return g.done.Load()
}

// ArmFinalizer installs a last-chance release for owner. If owner becomes
// unreachable before its guard ran, release is invoked from the collector and
// a warning is logged. Disarm must be called on the normal release path.
func ArmFinalizer[T any](owner *T, guard func(*T) *Guard, logger *slog.Logger, release func(*T)) {
	runtime.SetFinalizer(owner, func(o *T) {
		g := guard(o)
		if g.Done() {
			return
		}
		if logger != nil {
			logger.Warn("Value was never disposed, caught by finalizer.", "type", typeName(o))
		}
		g.Do(func() { release(o) })
	})
}

// Disarm removes a finalizer installed by ArmFinalizer.
func Disarm[T any](owner *T) {
	runtime.SetFinalizer(owner, nil)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
