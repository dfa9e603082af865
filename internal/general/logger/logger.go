package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// ----- Public wire types -----

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack,omitempty"`
}

// LogEntry is the single-line JSON format written to the output.
type LogEntry struct {
	Timestamp  string       `json:"timestamp"`             // RFC 3339, UTC
	Level      string       `json:"level"`                 // DEBUG | INFO | WARN | ERROR
	Service    string       `json:"service"`               // e.g. chat-service
	Action     string       `json:"action"`                // event name, e.g. message_sent
	Message    string       `json:"message"`               // human-readable description
	Hostname   string       `json:"hostname"`              // service hostname
	RequestID  string       `json:"request_id,omitempty"`  // correlation ID for tracing
	ShipmentID string       `json:"shipment_id,omitempty"` // shipment request the line is about
	UserID     string       `json:"user_id,omitempty"`     // acting identity
	Details    any          `json:"details,omitempty"`     // optional: extra fields (map or struct)
	Error      *ErrorObject `json:"error,omitempty"`       // optional: error details
}

// Level orders severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel maps a config string to a level; unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ----- Logger -----

type Logger struct {
	service  string
	hostname string
	min      Level
	out      io.Writer
	mu       sync.Mutex
}

// New creates a structured logger for the given service writing to stdout.
func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(service string, w io.Writer) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}
	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}
	if w == nil {
		w = io.Discard
	}
	return &Logger{service: service, hostname: hn, min: LevelDebug, out: w}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewWithWriter("discard", io.Discard)
}

// SetLevel drops lines below min.
func (l *Logger) SetLevel(min Level) {
	l.mu.Lock()
	l.min = min
	l.mu.Unlock()
}

// emit marshals and writes a single JSON line.
func (l *Logger) emit(e LogEntry) {
	b, err := json.Marshal(e)
	if err != nil {
		// retry once without Details (common source of marshal errors)
		e.Details = nil
		b, err = json.Marshal(e)
	}
	if err != nil {
		b, _ = json.Marshal(map[string]any{
			"timestamp": nowISO(),
			"level":     "ERROR",
			"service":   l.service,
			"action":    "logger_marshal_failed",
			"message":   "failed to encode log entry",
			"hostname":  l.hostname,
			"error":     ErrorObject{Msg: strings.TrimSpace(err.Error())},
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, werr := l.out.Write(append(b, '\n')); werr != nil {
		fmt.Fprintf(os.Stderr, "log write failed: %v\n", werr)
	}
}

func (l *Logger) entry(ctx context.Context, level Level, action, msg string, details any) (LogEntry, bool) {
	l.mu.Lock()
	enabled := level >= l.min
	l.mu.Unlock()
	if !enabled {
		return LogEntry{}, false
	}
	return LogEntry{
		Timestamp:  nowISO(),
		Level:      level.String(),
		Service:    l.service,
		Action:     safeAction(action),
		Message:    strings.TrimSpace(msg),
		Hostname:   l.hostname,
		RequestID:  fromCtx(ctx, ctxKeyRequestID),
		ShipmentID: fromCtx(ctx, ctxKeyShipmentID),
		UserID:     fromCtx(ctx, ctxKeyUserID),
		Details:    details,
	}, true
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	if e, ok := l.entry(ctx, LevelDebug, action, msg, details); ok {
		l.emit(e)
	}
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	if e, ok := l.entry(ctx, LevelInfo, action, msg, details); ok {
		l.emit(e)
	}
}

// Warn writes a WARN line; err may be nil.
func (l *Logger) Warn(ctx context.Context, action, msg string, err error, details any) {
	e, ok := l.entry(ctx, LevelWarn, action, msg, details)
	if !ok {
		return
	}
	if err != nil {
		e.Error = &ErrorObject{Msg: strings.TrimSpace(err.Error())}
	}
	l.emit(e)
}

// Error writes an ERROR line and attaches a stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	e, ok := l.entry(ctx, LevelError, action, msg, details)
	if !ok {
		return
	}
	e.Error = &ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}
	l.emit(e)
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID  ctxKey = "transportconnect_request_id"
	ctxKeyShipmentID ctxKey = "transportconnect_shipment_id"
	ctxKeyUserID     ctxKey = "transportconnect_user_id"
)

// WithRequestID returns a new context carrying the correlation id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	return withValue(ctx, ctxKeyRequestID, reqID)
}

// WithShipmentID returns a new context carrying the shipment request id.
func (l *Logger) WithShipmentID(ctx context.Context, id string) context.Context {
	return withValue(ctx, ctxKeyShipmentID, id)
}

// WithUserID returns a new context carrying the acting user id.
func (l *Logger) WithUserID(ctx context.Context, id string) context.Context {
	return withValue(ctx, ctxKeyUserID, id)
}

// RequestID extracts the correlation id from ctx (if any).
func RequestID(ctx context.Context) string {
	return fromCtx(ctx, ctxKeyRequestID)
}

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if strings.TrimSpace(v) == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func fromCtx(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// ----- Small utilities -----

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
