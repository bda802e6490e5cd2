package util

// TrimString cuts s to at most length bytes, backing off so a multi-byte rune
// is never split.
func TrimString(s string, length int) string {
	if len(s) <= length {
		return s
	}

	for length > 0 && !runeStart(s[length]) {
		length--
	}

	return s[:length]
}

func runeStart(b byte) bool {
	return b&0xC0 != 0x80
}
