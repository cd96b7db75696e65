// Package events classifies normalized trace records into a closed set of
// typed payloads.
//
// The namespace string is the only discriminator: one registry maps each
// recognized namespace to a decoder producing the matching payload variant.
// Decoding never fails the stream; a missing or malformed field turns the
// record into a counted discard and the next record is processed.
package events
