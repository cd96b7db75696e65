// Package netconns snapshots the host's established TCP connections so the
// peer tracker can be reconciled against ground truth. The node's trace log
// tells us about transitions it chose to report; the kernel's socket tables
// tell us who is actually connected right now.
package netconns
