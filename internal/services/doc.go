// Package services defines the error taxonomy and context annotations shared
// by the external service clients (ComfyUI, Telegram, DeepSeek).
//
// Transport errors are retried up to a bound; backend execution errors are
// terminal per iteration; balance, validation, and configuration errors are
// rejections the orchestrator surfaces verbatim.
package services
