// internal/logger/styled.go
package logger

import (
	"log/slog"

	"github.com/axleway/llmgate/theme"
)

// HealthState is the three-way outcome InfoHealthStatus reports: an
// endpoint is either currently dispatchable, parked by the cooldown
// tracker, or its state hasn't been observed yet.
type HealthState int

const (
	StateHealthy HealthState = iota
	StateParked
	StateUnknown
)

// LogContext carries a human-facing message (UserArgs, always logged) and
// an optional expanded set of fields (DetailedArgs) that only the file
// sink receives, so the terminal stays readable while the log file keeps
// the full picture.
type LogContext struct {
	UserArgs     []interface{}
	DetailedArgs []interface{}
}

// StyledLogger is the theme-aware logging surface the data plane depends
// on. PrettyStyledLogger and PlainStyledLogger are its two
// implementations; which one is active depends on Config.PrettyLogs.
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	InfoWithCount(msg string, count int, args ...any)
	InfoWithEndpoint(msg string, endpoint string, args ...any)
	InfoWithHealthCheck(msg string, endpoint string, args ...any)
	InfoWithNumbers(msg string, numbers ...int64)
	WarnWithEndpoint(msg string, endpoint string, args ...any)
	ErrorWithEndpoint(msg string, endpoint string, args ...any)
	InfoHealthy(msg string, endpoint string, args ...any)
	InfoHealthStatus(msg string, name string, state HealthState, args ...any)
	InfoConfigChange(oldName, newName string)

	InfoWithContext(msg string, endpoint string, ctx LogContext)
	WarnWithContext(msg string, endpoint string, ctx LogContext)
	ErrorWithContext(msg string, endpoint string, ctx LogContext)

	GetUnderlying() *slog.Logger
	WithRequestID(requestID string) StyledLogger
	WithAttrs(attrs ...slog.Attr) StyledLogger
	With(args ...any) StyledLogger
}

// toInterfaceSlice converts a string slice to []interface{} for
// fmt.Sprintf's variadic args.
func toInterfaceSlice(strs []string) []interface{} {
	result := make([]interface{}, len(strs))
	for i, s := range strs {
		result[i] = s
	}
	return result
}

// NewWithTheme creates both the underlying slog.Logger and a styled
// logger over it, choosing the pretty or plain implementation per
// cfg.PrettyLogs.
func NewWithTheme(cfg *Config) (*slog.Logger, StyledLogger, func(), error) {
	baseLogger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	if !cfg.PrettyLogs {
		return baseLogger, NewPlainStyledLogger(baseLogger), cleanup, nil
	}

	appTheme := theme.GetTheme(cfg.Theme)
	return baseLogger, NewPrettyStyledLogger(baseLogger, appTheme), cleanup, nil
}
