package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ProbeFormat and ProbeStream mirror the parts of ffprobe's JSON output the
// pipeline reads.
type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	Duration   string `json:"duration"`
}

type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// VideoInfo is derived fresh on every probe and never persisted.
type VideoInfo struct {
	Path       string  `json:"path"`
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	VideoCodec string  `json:"video_codec"`
	AudioCodec string  `json:"audio_codec"`
	Container  string  `json:"container"`
	Bitrate    int     `json:"bitrate"` // kbps
	Framerate  float64 `json:"framerate"`
	Size       int64   `json:"size"`
}

const (
	oneKilobyte      = 1024
	oneMegabyte      = oneKilobyte * 1024
	oneGigabyte      = oneMegabyte * 1024
	oneKilobitPerSec = 1000
)

func (p *ProbeResult) VideoStream() *ProbeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

func (p *ProbeResult) AudioStream() *ProbeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	return nil
}

// VideoInfo flattens the probe output. A result without a video stream is
// not a video and yields ErrProbeFailed.
func (p *ProbeResult) VideoInfo(path string) (*VideoInfo, error) {
	vs := p.VideoStream()
	if vs == nil {
		return nil, fmt.Errorf("%w: no video stream in %s", ErrProbeFailed, path)
	}

	audioCodec := "none"
	if as := p.AudioStream(); as != nil {
		audioCodec = as.CodecName
	}

	duration := ParseDuration(p.Format.Duration)
	if duration == 0 {
		duration = ParseDuration(vs.Duration)
	}

	container, _, _ := strings.Cut(p.Format.FormatName, ",")

	return &VideoInfo{
		Path:       path,
		Duration:   duration,
		Width:      vs.Width,
		Height:     vs.Height,
		VideoCodec: vs.CodecName,
		AudioCodec: audioCodec,
		Container:  container,
		Bitrate:    int(ParseSize(p.Format.BitRate) / oneKilobitPerSec),
		Framerate:  ParseFrameRate(vs.RFrameRate),
		Size:       ParseSize(p.Format.Size),
	}, nil
}

var (
	browserVideoCodecs = map[string]bool{"h264": true, "avc": true, "vp8": true, "vp9": true, "av1": true}
	browserAudioCodecs = map[string]bool{"aac": true, "mp3": true, "opus": true, "vorbis": true, "none": true}
	browserContainers  = map[string]bool{"mp4": true, "mov": true, "webm": true}
)

// BrowserCompatible reports whether a browser can play the file untouched.
func (v *VideoInfo) BrowserCompatible() bool {
	return v.VideoCodecPlayable() &&
		browserAudioCodecs[strings.ToLower(v.AudioCodec)] &&
		browserContainers[strings.ToLower(v.Container)]
}

// VideoCodecPlayable only looks at the video codec.
func (v *VideoInfo) VideoCodecPlayable() bool {
	return browserVideoCodecs[strings.ToLower(v.VideoCodec)]
}

func (v *VideoInfo) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

func ParseFrameRate(fraction string) float64 {
	if fraction == "" || fraction == "0/0" {
		return 0
	}
	var num, den int
	if _, err := fmt.Sscanf(fraction, "%d/%d", &num, &den); err == nil && den > 0 {
		return float64(num) / float64(den)
	}
	if f, err := strconv.ParseFloat(fraction, 64); err == nil {
		return f
	}
	return 0
}

func ParseSize(sizeStr string) int64 {
	if sizeStr == "" {
		return 0
	}
	var size int64
	if _, err := fmt.Sscanf(sizeStr, "%d", &size); err == nil {
		return size
	}
	return 0
}

func ParseDuration(durationStr string) float64 {
	if durationStr == "" || durationStr == "N/A" {
		return 0
	}
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0
	}
	return duration
}

func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return "00:00"
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

func FormatSize(bytes int64) string {
	if bytes < oneKilobyte {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < oneMegabyte {
		return fmt.Sprintf("%.1f KB", float64(bytes)/oneKilobyte)
	}
	if bytes < oneGigabyte {
		return fmt.Sprintf("%.1f MB", float64(bytes)/oneMegabyte)
	}
	return fmt.Sprintf("%.1f GB", float64(bytes)/oneGigabyte)
}
