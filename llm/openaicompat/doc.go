// Package openaicompat implements llm.Provider over the OpenAI-compatible
// chat completions HTTP API (JSON for single-shot, SSE for streaming). Most
// hosted inference endpoints speak this dialect, so one transport covers
// them all; only the base URL, key and default model differ.
package openaicompat
