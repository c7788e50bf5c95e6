/*
Package analysis turns a rolling conversation history into normalized
quality/behavior metrics and a next-speaker forecast.

The Engine is a pure function of (history, topic, turn counters): calling
Analyze produces a fresh immutable Snapshot every step and never mutates a
previous one. The only internal state is a cached topic keyword set that is
recomputed when the topic changes.

Every metric defines an explicit neutral default for degenerate input (empty
history, empty topic keyword set) instead of producing NaN. The defaults are
documented on each metric function.
*/
package analysis
