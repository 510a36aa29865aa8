// Copyright 2018, RadiantBlue Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Severity is the severity of an audit log entry
type Severity string

// Audit severities
const (
	DEBUG   Severity = "DEBUG"
	INFO    Severity = "INFO"
	NOTICE  Severity = "NOTICE"
	WARNING Severity = "WARNING"
	ERROR   Severity = "ERROR"
	FATAL   Severity = "FATAL"
)

// LogContext is anything that can identify the origin of a log message
type LogContext interface {
	AppName() string
	SessionID() string
	LogRootDir() string
}

// BasicLogContext is a LogContext for code that has no request to speak of.
// It is safe to share between goroutines.
type BasicLogContext struct {
	once      sync.Once
	sessionID string
}

// NewBasicLogContext returns a BasicLogContext with its session id in place
func NewBasicLogContext() *BasicLogContext {
	return &BasicLogContext{sessionID: NewSessionID()}
}

// AppName returns the application name
func (c *BasicLogContext) AppName() string {
	return AppName
}

// SessionID returns a Session ID, creating one if needed
func (c *BasicLogContext) SessionID() string {
	c.once.Do(func() {
		if c.sessionID == "" {
			c.sessionID = NewSessionID()
		}
	})
	return c.sessionID
}

// LogRootDir returns an empty string
func (c *BasicLogContext) LogRootDir() string {
	return ""
}

// AppName is the name reported by every log context in this application
const AppName = "bf-s2-tile-broker"

// LogAuditInput describes an auditable action: who did what to whom
type LogAuditInput struct {
	Actor    string
	Action   string
	Actee    string
	Message  string
	Severity Severity
}

var (
	loggerMu sync.RWMutex
	logger   = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

// SetLogOutput redirects all log output to the given writer
func SetLogOutput(w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = slog.New(slog.NewJSONHandler(w, nil))
}

func currentLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func contextAttrs(ctx LogContext) []any {
	if ctx == nil {
		return []any{slog.String("app", AppName)}
	}
	return []any{
		slog.String("app", ctx.AppName()),
		slog.String("session", ctx.SessionID()),
	}
}

// NewSessionID returns a fresh random session identifier
func NewSessionID() string {
	return uuid.NewString()
}

// LogInfo logs an informational message
func LogInfo(ctx LogContext, message string) {
	currentLogger().Info(message, contextAttrs(ctx)...)
}

// LogAlert logs a message that somebody should probably look at
func LogAlert(ctx LogContext, message string) {
	currentLogger().Warn(message, contextAttrs(ctx)...)
}

// LogAudit logs an auditable action
func LogAudit(ctx LogContext, input LogAuditInput) {
	attrs := append(contextAttrs(ctx),
		slog.String("actor", input.Actor),
		slog.String("action", input.Action),
		slog.String("actee", input.Actee),
		slog.String("severity", string(input.Severity)),
	)
	currentLogger().Log(context.Background(), severityLevel(input.Severity), input.Message, attrs...)
}

// LogSimpleErr logs an error along with a message and returns an error
// carrying the message, suitable for handing back to a caller
func LogSimpleErr(ctx LogContext, message string, err error) error {
	attrs := contextAttrs(ctx)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	currentLogger().Error(message, attrs...)
	return Error{LogMsg: message, SimpleMsg: message, cause: err}
}

func severityLevel(s Severity) slog.Level {
	switch s {
	case DEBUG:
		return slog.LevelDebug
	case WARNING:
		return slog.LevelWarn
	case ERROR, FATAL:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
