// Package channelid computes the deterministic term -> chatroom id mapping.
package channelid

import (
	"crypto/sha256"
	"encoding/binary"
)

// ChannelID maps a search term to its chatroom id: the first 4 bytes
// of SHA-256(UTF-8(term)), read little-endian as a signed 32-bit integer.
//
// Pure and deterministic: identical terms produce identical ids across
// every component of the fleet.
func ChannelID(term string) int32 {
	sum := sha256.Sum256([]byte(term))
	return int32(binary.LittleEndian.Uint32(sum[:4]))
}
