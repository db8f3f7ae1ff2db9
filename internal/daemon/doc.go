// Package daemon hosts the bot as a long-running service: it owns the
// lifecycle of the intake loop and worker pool and uses a file lock to keep
// a second instance from double-consuming the same bot token.
package daemon
