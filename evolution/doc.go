/*
Package evolution maintains an adaptive population of prompt variants per
cast role.

Each role owns one Population: a capped arena of PromptVariant values, a
bandit-style explore/exploit selector and a per-variant performance ledger.
Recording an experiment updates exactly one ledger in O(1) via incremental
means, re-evaluates the promoted best variant, and may breed a new child
variant (mutation, crossover or heuristic repair). The Arena bundles the
three role populations with the global experiment log and provides the
opaque export/import snapshot consumed by the persistence collaborator.

All randomized choices flow through an injectable *rand.Rand so tests can
force deterministic outcomes.
*/
package evolution
