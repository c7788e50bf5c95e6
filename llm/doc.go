// Package llm defines the provider abstraction the orchestrator speaks
// through: a unified ChatRequest/ChatResponse contract, SSE stream chunks,
// HTTP error mapping, retry and rate-limit wrappers, and token estimation.
//
// Concrete transports live in subpackages; see llm/openaicompat for the
// OpenAI-compatible HTTP implementation.
package llm
