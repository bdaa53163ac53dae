// Package network provides the peer-to-peer fabric for a craps table.
// It implements fire-and-forget broadcast over HTTP with no ordering,
// delivery or deduplication guarantees; the layers above are built to
// tolerate duplicated, dropped and reordered messages.
//
// # Core Components
//
// Mesh: Posts outbound messages to every known peer address and
// serves inbound messages onto a channel.
//
// Message: The wire envelope tagging each payload with its kind and
// the game it belongs to.
//
// # Message Kinds
//
// Bets, randomness commitments and reveals travel as signed events;
// round summaries carry consensus votes; event requests and responses
// let peers fill gaps in each other's logs during reconciliation.
package network
