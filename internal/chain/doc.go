// Package chain maps slot numbers to wall-clock time.
//
// Each supported network anchors its slot arithmetic at the genesis start
// time recorded in the shelley genesis file. With a fixed slot length the
// nominal production instant of any slot is a pure function of the network
// parameters, which is what the propagation deltas are measured against.
package chain
