package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength is the common filesystem limit.
const maxFilenameLength = 255

var ErrInvalidSegmentName = errors.New("invalid segment name")

// segmentPattern matches the names ffmpeg's HLS muxer writes. No separators,
// no dots other than the extension.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.ts$`)

// ValidateSegmentName accepts a plain "*.ts" file name and nothing that could
// leave the HLS directory.
func ValidateSegmentName(name string) error {
	if len(name) > maxFilenameLength || !segmentPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSegmentName, name)
	}
	return nil
}

// SanitizeFilename makes a file name safe for a Content-Disposition header.
// Control characters, quotes and path separators become underscores, unicode
// is preserved and overlong names are cut keeping the extension. Empty input
// yields "video".
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < 32 || r == 127:
			return '_'
		case r == '"' || r == '\\' || r == '/' || r == ':':
			return '_'
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)

	if strings.Trim(cleaned, "_") == "" {
		return "video"
	}
	if len(cleaned) <= maxFilenameLength {
		return cleaned
	}

	ext := filepath.Ext(cleaned)
	if ext == "" || len(ext) >= maxFilenameLength {
		return truncateUTF8(cleaned, maxFilenameLength)
	}
	base := strings.TrimSuffix(cleaned, ext)
	return truncateUTF8(base, maxFilenameLength-len(ext)) + ext
}

// truncateUTF8 cuts s to at most n bytes on a rune boundary.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ContentDisposition returns an inline or attachment header value for name.
func ContentDisposition(name string, inline bool) string {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	return fmt.Sprintf("%s; filename=%q", disposition, SanitizeFilename(name))
}
