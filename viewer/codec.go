package viewer

// EncodeProgress serializes a visited-page bitmap as a string of '0' and '1'
// characters, one per page, in page order.
func EncodeProgress(visited []bool) string {
	buf := make([]byte, len(visited))
	for i, v := range visited {
		if v {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

// DecodeProgress parses a persisted bitmap string back into a visited-page
// bitmap of length pageCount. A string whose length does not match pageCount,
// or that contains anything other than '0'/'1', is treated as no prior
// progress and yields an all-false bitmap. Page counts change between
// sessions when a document is replaced; stale progress is dropped rather
// than rejected.
func DecodeProgress(s string, pageCount int) []bool {
	visited := make([]bool, pageCount)
	if len(s) != pageCount {
		return visited
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '1':
			visited[i] = true
		case '0':
		default:
			return make([]bool, pageCount)
		}
	}
	return visited
}
