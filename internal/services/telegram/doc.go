// Package telegram is the Bot API transport: long-poll intake plus
// fire-and-forget message, photo, and media group delivery.
//
// The client never retries sends; delivery failures surface to the caller
// for logging only. Update offsets are owned by the caller, which advances
// past each processed update for at-most-once-forward progress.
package telegram
