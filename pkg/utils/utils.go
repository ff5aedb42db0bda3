package utils

import (
	"context"
	"fmt"
	"golang-alerting/pkg/logger"
	"regexp"
	"runtime"
	"runtime/debug"
	"strings"
)

var reIdentifier = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,99}$`)

// ValidIdentifier reports whether id is safe to use as a tenant or schedule
// key, including as a file name.
func ValidIdentifier(id string) bool {
	return reIdentifier.MatchString(id) && !strings.Contains(id, "..")
}

// Contains reports whether v is an element of slice.
func Contains[T comparable](slice []T, v T) bool {
	for _, item := range slice {
		if item == v {
			return true
		}
	}
	return false
}

// GoSafe runs fn in a new goroutine and logs any panic instead of crashing.
func GoSafe(log *logger.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered in goroutine",
					logger.StringField("goroutine", name),
					logger.StringField("panic", fmt.Sprint(r)),
					logger.StringField("stack", string(debug.Stack())),
				)
			}
		}()
		fn()
	}()
}

func ToPointer[T any](value T) *T {
	return &value
}

// ShouldContinue is false once ctx is done, logging the caller.
func ShouldContinue(ctx context.Context, log *logger.Logger) bool {
	select {
	case <-ctx.Done():
		pc, _, _, ok := runtime.Caller(1)
		funcName := "unknown"
		if ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				parts := strings.Split(fn.Name(), "/")
				funcName = parts[len(parts)-1]
			}
		}
		log.Warn("Context cancelled", logger.StringField("caller", funcName))
		return false
	default:
		return true
	}
}
