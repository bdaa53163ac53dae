// Package eventlog implements the append-only record every peer keeps
// of the actions accepted at its table.
//
// # Core Components
//
// Log: Deduplicated storage of signed events with replay into the
// authoritative game state.
//
// Event: A signed, hash-addressed action: a bet, a randomness
// commitment or a reveal.
//
// # Security Properties
//
// The log provides:
//   - Verifiability: every event carries its sender's signature
//   - Convergence: peers holding the same events replay to
//     byte-identical states, whatever order the events arrived in
//   - Auditability: the full history of a round can be recomputed
//     and checked against the committed consensus certificate
//
// # Compaction
//
// A consensus checkpoint vouches for everything before it, so events
// from rounds older than the latest checkpoint can be dropped without
// losing the ability to verify current state.
package eventlog
