package services

import "context"

type contextKey string

const (
	chatIDKey    contextKey = "chat_id"
	taskSeqKey   contextKey = "task_seq"
	requestIDKey contextKey = "request_id"
)

// WithChatID annotates context with the originating chat identifier.
func WithChatID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, chatIDKey, id)
}

// ChatIDFromContext extracts the chat identifier if present.
func ChatIDFromContext(ctx context.Context) (int64, bool) {
	if v, ok := ctx.Value(chatIDKey).(int64); ok {
		return v, true
	}
	return 0, false
}

// WithTaskSeq annotates context with the task sequence number.
func WithTaskSeq(ctx context.Context, seq int64) context.Context {
	return context.WithValue(ctx, taskSeqKey, seq)
}

// TaskSeqFromContext extracts the task sequence number if present.
func TaskSeqFromContext(ctx context.Context) (int64, bool) {
	if v, ok := ctx.Value(taskSeqKey).(int64); ok {
		return v, true
	}
	return 0, false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
