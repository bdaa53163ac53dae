// Package consensus implements the per-round agreement protocol for a
// distributed craps table. After every dice roll each peer settles the
// bets locally, condenses the outcome into a signed round summary and
// exchanges it with the other peers; the round commits when enough
// payout roots match byte for byte.
//
// # Core Components
//
// RoundSummary: A peer's signed digest of one round: the dice, the
// Merkle root of the bets in play and the Merkle root of the payouts.
//
// Coordinator: Collects summaries for each round and decides whether
// to commit, reconcile or give up.
//
// RoundConsensus: The quorum certificate produced by a committed round,
// usable as a checkpoint for compacting the event log.
//
// # Protocol
//
// The protocol follows these steps:
//  1. Each peer computes and signs its own round summary
//  2. Summaries are broadcast to every peer at the table
//  3. Each peer counts the summaries whose payout root equals its own
//  4. At quorum the round commits; below quorum the peers reconcile
//     their event logs and retry once
//
// # Byzantine Fault Tolerance
//
// Quorum is 2n/3+1 of n participants, so agreement survives up to
// one third of the table misreporting or withholding summaries. A
// second shortfall after reconciliation is terminal: the table stops
// rather than settle bets without agreement.
package consensus
