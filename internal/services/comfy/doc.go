// Package comfy is the client for the remote ComfyUI compute backend.
//
// Submission retries transport errors up to a fixed bound; polling treats a
// missing history record as still-pending, an exec_info error marker as
// terminal failure, and bounds every wait with the configured timeout so no
// execution task can hang indefinitely.
package comfy
