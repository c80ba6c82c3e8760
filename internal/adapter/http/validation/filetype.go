// Package validation checks names and file contents that arrive from outside:
// HLS segment names in URLs and files handed over by the download client.
package validation

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// Containers reported by SniffVideoContainer.
const (
	ContainerMatroska  = "matroska"
	ContainerWebM      = "webm"
	ContainerMP4       = "mp4"
	ContainerQuickTime = "mov"
	ContainerAVI       = "avi"
	ContainerASF       = "asf"
	ContainerFLV       = "flv"
	ContainerMPEGTS    = "mpegts"
	ContainerMPEGPS    = "mpeg"
)

// sniffBufferSize covers the EBML header, where the DocType lives, and two
// transport stream packets.
const sniffBufferSize = 512

const tsPacketSize = 188

var asfHeaderGUID = []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11, 0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C}

// SniffVideoContainer identifies a video container from its magic bytes and
// rewinds the reader. It reports false for anything it does not recognise,
// including empty input.
func SniffVideoContainer(r io.ReadSeeker) (string, bool, error) {
	buf := make([]byte, sniffBufferSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}

	container := detectContainer(buf[:n])
	return container, container != "", nil
}

// SniffVideoFile opens path and sniffs its container.
func SniffVideoFile(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()
	return SniffVideoContainer(f)
}

func detectContainer(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	switch {
	case bytes.HasPrefix(buf, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		// EBML header. The DocType string tells WebM from Matroska.
		if bytes.Contains(buf, []byte("webm")) {
			return ContainerWebM
		}
		return ContainerMatroska

	case len(buf) >= 12 && bytes.Equal(buf[4:8], []byte("ftyp")):
		if bytes.Equal(buf[8:12], []byte("qt  ")) {
			return ContainerQuickTime
		}
		return ContainerMP4

	case len(buf) >= 12 && bytes.HasPrefix(buf, []byte("RIFF")) && bytes.Equal(buf[8:12], []byte("AVI ")):
		return ContainerAVI

	case bytes.HasPrefix(buf, asfHeaderGUID):
		return ContainerASF

	case bytes.HasPrefix(buf, []byte("FLV")):
		return ContainerFLV

	case bytes.HasPrefix(buf, []byte{0x00, 0x00, 0x01, 0xBA}):
		return ContainerMPEGPS

	case buf[0] == 0x47 && len(buf) > tsPacketSize && buf[tsPacketSize] == 0x47:
		return ContainerMPEGTS
	}

	return ""
}
