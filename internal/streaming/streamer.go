package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bnema/vodpipe/internal/adapter/http/validation"
	"github.com/bnema/vodpipe/internal/infrastructure/logger"
	"github.com/bnema/vodpipe/internal/metrics"
)

// ChunkSize is the read/write unit of a file body.
const ChunkSize = 1 << 20

const (
	ManifestName = "master.m3u8"

	msgHLSUnavailable = "HLS stream not available, transcode may be in progress"
)

// ErrClientGone reports that the client went away mid-body.
var ErrClientGone = errors.New("client disconnected")

var mimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".ts":   "video/mp2t",
	".m3u8": "application/vnd.apple.mpegurl",
	".mpd":  "application/dash+xml",
}

func ContentType(path string) string {
	if ct, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// HLSDir is where the segmenter writes an item's playlist and segments.
func HLSDir(root string, itemID int64) string {
	return filepath.Join(root, strconv.FormatInt(itemID, 10), "hls")
}

func ManifestPath(root string, itemID int64) string {
	return filepath.Join(HLSDir(root, itemID), ManifestName)
}

// Streamer writes video files and HLS output to HTTP responses. HLS files are
// looked up under root.
type Streamer struct {
	root string
}

func NewStreamer(root string) *Streamer {
	return &Streamer{root: root}
}

// ServeFile answers with the whole file, or with one byte range when the
// request carries a Range header this package can satisfy. HEAD requests get
// the same headers and no body.
func (s *Streamer) ServeFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	size := st.Size()

	h := w.Header()
	h.Set("Content-Type", ContentType(path))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Disposition", validation.ContentDisposition(filepath.Base(path), true))

	status, start, length, kind := http.StatusOK, int64(0), size, "full"
	if header := r.Header.Get("Range"); header != "" {
		if br, ok := ParseRange(header, size); ok {
			status, start, length, kind = http.StatusPartialContent, br.Start, br.Length(), "partial"
			h.Set("Content-Range", br.ContentRange(size))
		}
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	metrics.StreamRequestsTotal.WithLabelValues(kind).Inc()

	w.WriteHeader(status)
	if r.Method == http.MethodHead || length == 0 {
		return
	}

	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			logger.Error.Printf("seek %s: %v", logger.SanitizeForLog(path), err)
			return
		}
	}

	n, err := copyChunks(r.Context(), w, f, length)
	metrics.StreamBytesTotal.Add(float64(n))
	if err != nil {
		if errors.Is(err, ErrClientGone) {
			logger.Debug.Printf("stream of %s stopped after %d bytes: %v", logger.SanitizeForLog(path), n, err)
			return
		}
		logger.Error.Printf("stream of %s failed after %d bytes: %v", logger.SanitizeForLog(path), n, err)
	}
}

// copyChunks copies n bytes in ChunkSize pieces, flushing each one. It stops
// as soon as ctx is done or a write fails. A source shorter than n ends the
// copy without error.
func copyChunks(ctx context.Context, w io.Writer, src io.Reader, n int64) (int64, error) {
	buf := make([]byte, ChunkSize)
	flusher, _ := w.(http.Flusher)

	var written int64
	for written < n {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %v", ErrClientGone, err)
		}

		want := min(int64(len(buf)), n-written)
		read, rerr := io.ReadFull(src, buf[:want])
		if read > 0 {
			wn, werr := w.Write(buf[:read])
			written += int64(wn)
			if werr != nil {
				return written, fmt.Errorf("%w: %v", ErrClientGone, werr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				return written, nil
			}
			return written, rerr
		}
	}
	return written, nil
}

func (s *Streamer) ServeManifest(w http.ResponseWriter, r *http.Request, itemID int64) {
	path := ManifestPath(s.root, itemID)
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, msgHLSUnavailable, http.StatusNotFound)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		http.Error(w, msgHLSUnavailable, http.StatusNotFound)
		return
	}

	metrics.StreamRequestsTotal.WithLabelValues("manifest").Inc()
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, ManifestName, st.ModTime(), f)
}

// ServeSegment serves one transport stream segment. Segments never change
// once written, so clients may cache them for good.
func (s *Streamer) ServeSegment(w http.ResponseWriter, r *http.Request, itemID int64, name string) {
	if err := validation.ValidateSegmentName(name); err != nil {
		http.Error(w, "Invalid segment name", http.StatusBadRequest)
		return
	}

	f, err := os.Open(filepath.Join(HLSDir(s.root, itemID), name))
	if err != nil {
		http.Error(w, "Segment not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		http.Error(w, "Segment not found", http.StatusNotFound)
		return
	}

	metrics.StreamRequestsTotal.WithLabelValues("segment").Inc()
	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, st.ModTime(), f)
}
