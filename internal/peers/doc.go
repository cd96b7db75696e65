// Package peers tracks the connectivity state of every peer the node talks
// to.
//
// The tracker owns the peer map. Peer existence is reconciled against the
// operating system's established-socket truth, while peer state follows the
// node's own log events: the node knows which state it holds a peer in, the
// OS only knows whether a connection exists. Both inputs funnel through the
// tracker's operations under one lock, so ingestion order is preserved and
// reconciliation passes are atomic.
package peers
