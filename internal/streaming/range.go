// Package streaming serves video files and HLS output to browser players.
package streaming

import (
	"fmt"
	"regexp"
	"strconv"
)

var rangePattern = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// ByteRange is an inclusive byte interval of a file.
type ByteRange struct {
	Start int64
	End   int64
}

func (br ByteRange) Length() int64 {
	return br.End - br.Start + 1
}

// ContentRange formats the Content-Range header value for a file of size.
func (br ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, size)
}

// ParseRange parses a single-range "bytes=start-end" header. Either bound may
// be omitted: a missing start means 0, a missing end means the last byte.
// Both bounds are clamped to the file. It reports false for anything it
// cannot serve as one range, and the caller answers with the full file.
func ParseRange(header string, size int64) (ByteRange, bool) {
	if size <= 0 {
		return ByteRange{}, false
	}

	m := rangePattern.FindStringSubmatch(header)
	if m == nil {
		return ByteRange{}, false
	}

	last := size - 1
	br := ByteRange{Start: 0, End: last}

	if m[1] != "" {
		start, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return ByteRange{}, false
		}
		br.Start = start
	}
	if m[2] != "" {
		end, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return ByteRange{}, false
		}
		br.End = end
	}

	br.Start = min(max(br.Start, 0), last)
	br.End = min(max(br.End, 0), last)

	if br.Start > br.End {
		return ByteRange{}, false
	}
	return br, true
}
