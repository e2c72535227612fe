// Package frame owns the message record and its wire image.
//
// Ownership boundary:
// - message record layout and checksum stamping
// - outgoing sequence assignment
// - buffered and byte-at-a-time transmit paths
//
// Wire layout:
//
//	[0]        start marker
//	[1]        length
//	[2]        sequence
//	[3]        system id
//	[4]        component id
//	[5]        kind
//	[6..6+len) payload
//	[6+len]    checksum low
//	[6+len+1]  checksum high
package frame
