package ffmpeg

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/bnema/vodpipe/internal/port"
)

// readProgress consumes ffmpeg's -progress key=value stream until EOF and
// reports the elapsed fraction of duration. Reported values never decrease.
func readProgress(r io.Reader, duration float64, onProgress port.ProgressFunc) {
	scanner := bufio.NewScanner(r)
	last := 0.0

	report := func(f float64) {
		f = clampFraction(f)
		if f < last || onProgress == nil {
			return
		}
		last = f
		onProgress(f)
	}

	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// out_time_ms is microseconds too; ffmpeg kept the old name.
			if duration <= 0 {
				continue
			}
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			report(float64(us) / 1e6 / duration)
		case "out_time":
			if duration <= 0 {
				continue
			}
			if secs, ok := parseOutTime(value); ok {
				report(secs / duration)
			}
		case "progress":
			if value == "end" {
				report(1)
			}
		}
	}
	// Drain so the writer never blocks if scanning stopped on a long line.
	_, _ = io.Copy(io.Discard, r)
}

// parseOutTime parses HH:MM:SS.micro into seconds.
func parseOutTime(v string) (float64, bool) {
	if strings.HasPrefix(v, "-") {
		return 0, false
	}
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 {
		return 0, false
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || s < 0 {
		return 0, false
	}
	return float64(h)*3600 + float64(m)*60 + s, true
}

func clampFraction(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
