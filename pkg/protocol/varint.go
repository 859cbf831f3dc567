package protocol

// MaxVarintLen is the maximum number of bytes a varint can occupy.
// A uint64 requires at most 10 bytes in varint encoding.
const MaxVarintLen = 10

// UvarintLen returns the number of bytes needed to encode v as a varint.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}

// StringLen returns the encoded size of a length-prefixed string.
func StringLen(s string) int {
	return UvarintLen(uint64(len(s))) + len(s)
}
