// Package bot wires the chat transport, the account ledger, the workflow
// library, and the ComfyUI backend into the conversation flow: photos and
// recognized commands become queued tasks, tasks run on a bounded worker
// pool, and results come back as media groups with per-iteration billing.
package bot
