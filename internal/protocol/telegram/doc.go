// Package telegram assembles P1 telegrams from a chunked byte stream.
//
// Ownership boundary:
// - start-marker synchronization (noise is dropped silently)
// - body extraction up to the terminator
// - checksum trailer collection
//
// Checksum validation lives in package crc; payload lines in package payload.
//
// Wire layout:
//
//	'/' <payload, no '/' or '!'> '!' <4 hex digits>
package telegram
