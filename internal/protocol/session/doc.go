// Package session owns per-channel receive state and the streaming frame
// parser.
//
// Ownership boundary:
// - one State per channel, fed one byte at a time by a single goroutine
// - running checksum over the frame being assembled
// - success/drop/error/overrun counters and sequence gap accounting
// - Parser: a channel-keyed registry of State values
//
// Counters are readable from any goroutine. The rest of a State is owned by
// whichever goroutine is feeding it.
package session
