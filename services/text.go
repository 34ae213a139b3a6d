package services

// countChineseChars counts characters in the CJK Unified Ideographs block
// only. Latin letters, digits and punctuation carry little weight for
// chunk sizing in this domain and are deliberately excluded.
func countChineseChars(text string) int {
	count := 0
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			count++
		}
	}
	return count
}

// truncateRunes returns the first n runes of text. Not word-boundary
// aware; the cut is by scalar length.
func truncateRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
