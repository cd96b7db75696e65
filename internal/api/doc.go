// Package api submits finalized block samples to the openblockperf
// backend. The Publisher decouples the event loop from the network: samples
// go into a bounded queue and a worker drains it, so a slow or unreachable
// backend can never stall event processing.
package api
