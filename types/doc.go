/*
Package types provides the global shared type definitions for trioflow.

types is the lowest-level public package: it depends on nothing else in the
module and supplies the type contracts shared by analysis, policy, evolution,
llm, orchestrator and store. The three cast roles, the immutable
Utterance/History pair, and the structured Error hierarchy with HTTP status
and retryability markers all live here to avoid circular imports.
*/
package types
