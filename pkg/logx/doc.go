// Package logx is routined's structured logging.
//
// A small Logger wrapper over zerolog keeps console output readable (short
// timestamp and caller) and file output JSON. Loggers created from a
// Service follow its config across hot reloads.
package logx
