// Package logx is a thin wrapper around zerolog.
//
// It exists so that the rest of the codebase can log through a stable,
// minimal API (Logger + Field helpers) while the sink configuration
// (console, file, levels) can be swapped at runtime via Service.Apply
// without invalidating loggers already handed out.
package logx
