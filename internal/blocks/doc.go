// Package blocks correlates the scattered per-block trace events into
// complete propagation samples.
//
// A record opens on the first qualifying event for a block hash and gathers
// up to four milestones: header first seen, fetch requested, body
// downloaded, block adopted. Every milestone is first-writer-wins, so later
// duplicates (for instance the same header arriving from a second peer) are
// no-ops. Adoption finalizes the record: the four deltas are computed, the
// sample is emitted, and the record leaves the open table. Records that are
// never adopted, typically blocks on a losing fork, are swept out after a
// configurable age without emitting anything.
package blocks
