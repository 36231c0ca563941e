// Package logger provides structured logging built on log/slog with
// environment presets and context-driven attribute injection.
//
// # Basic Usage
//
//	log := logger.New(
//	    logger.WithProduction("livefeed"),
//	)
//	log.Info("session started", logger.UserID("user-123"))
//
// # Context Extractors
//
// Attributes can be injected from context at log time, which keeps
// session-scoped data out of call sites:
//
//	log := logger.New(
//	    logger.WithContextValue("user_id", userIDKey{}),
//	)
//
// # Domain Attributes
//
// The attr helpers (Error, Component, State, EventType, Attempt, Channel,
// NotificationID) standardize key names across the codebase so log queries
// stay consistent.
package logger
