// -----------------------------------------------------------------------
// Panic-protected execution helpers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"runtime"

	"github.com/ternarybob/arbor"
)

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but don't crash the process.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger, name, r)
			}
		}()

		fn()
	}()
}

// RunProtected calls fn and converts a panic into an error so that callers
// can report a well-formed failure instead of crashing.
func RunProtected(logger arbor.ILogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, name, r)
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()

	return fn()
}

func logPanic(logger arbor.ILogger, name string, r interface{}) {
	if logger == nil {
		return
	}

	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprintf("%v", r)).
		Str("stack", string(buf[:n])).
		Msg("Recovered from panic")
}
