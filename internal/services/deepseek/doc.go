// Package deepseek classifies free-text chat messages into bot actions
// using the DeepSeek chat completion API with function calling. A nil
// client means classification is disabled and free text falls through to
// the static fallback reply.
package deepseek
