package response

import (
	"strconv"
	"strings"
)

// DecodeChunked recovers the payload of a chunked body, e.g. one echoed
// back by a server under test. Chunk extensions are ignored, decoding stops
// at the zero-size chunk and trailers are dropped. A missing CRLF after
// chunk data advances a single byte instead of failing. ok is false only
// when a size line is not valid hex.
func DecodeChunked(body string) (decoded string, ok bool) {
	var out strings.Builder
	pos := 0
	for pos < len(body) {
		lineEnd := strings.Index(body[pos:], "\r\n")
		if lineEnd < 0 {
			// Truncated size line: still reject text that is not a size.
			if !isHex(chunkSizeText(body[pos:])) {
				return "", false
			}
			break
		}
		sizeText := chunkSizeText(body[pos : pos+lineEnd])
		if !isHex(sizeText) {
			return "", false
		}
		size, err := strconv.ParseInt(sizeText, 16, 64)
		if err != nil {
			return "", false
		}
		if size == 0 {
			break
		}
		pos += lineEnd + 2

		end := pos + int(size)
		if end > len(body) || end < pos {
			out.WriteString(body[pos:])
			break
		}
		out.WriteString(body[pos:end])
		pos = end
		if strings.HasPrefix(body[pos:], "\r\n") {
			pos += 2
		} else {
			pos++
		}
	}
	return out.String(), true
}

// chunkSizeText strips any chunk extension and surrounding whitespace.
func chunkSizeText(line string) string {
	if semi := strings.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	return strings.TrimSpace(line)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
