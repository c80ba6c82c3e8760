package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bnema/vodpipe/internal/port"
)

const (
	EncoderLibx264       = "libx264"
	EncoderNVENC         = "h264_nvenc"
	EncoderQSV           = "h264_qsv"
	EncoderVAAPI         = "h264_vaapi"
	EncoderVideoToolbox  = "h264_videotoolbox"
	defaultVAAPIDevice   = "/dev/dri/renderD128"
	defaultLibx264Preset = "veryfast"
)

var supportedEncoders = map[string]bool{
	EncoderLibx264:      true,
	EncoderNVENC:        true,
	EncoderQSV:          true,
	EncoderVAAPI:        true,
	EncoderVideoToolbox: true,
}

func IsSupportedEncoder(name string) bool {
	return supportedEncoders[name]
}

func buildTranscodeArgs(encoder string, req port.TranscodeRequest) []string {
	s := req.Preset.Settings()

	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error"}
	if encoder == EncoderVAAPI {
		args = append(args, "-vaapi_device", defaultVAAPIDevice)
	}
	args = append(args, "-i", req.SourcePath)

	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		s.Width, s.Height, s.Width, s.Height)

	args = append(args, "-map", "0:v:0", "-map", "0:a:0?")

	switch encoder {
	case EncoderNVENC:
		args = append(args, "-c:v", encoder, "-preset", "p4", "-cq", strconv.Itoa(s.CRF))
	case EncoderQSV:
		args = append(args, "-c:v", encoder, "-global_quality", strconv.Itoa(s.CRF))
	case EncoderVAAPI:
		filter += ",format=nv12,hwupload"
		args = append(args, "-c:v", encoder, "-qp", strconv.Itoa(s.CRF))
	case EncoderVideoToolbox:
		args = append(args, "-c:v", encoder)
	default:
		args = append(args, "-c:v", EncoderLibx264, "-preset", defaultLibx264Preset, "-crf", strconv.Itoa(s.CRF))
	}

	args = append(args,
		"-b:v", s.VideoBitrate,
		"-maxrate", s.VideoBitrate,
		"-bufsize", doubleRate(s.VideoBitrate),
		"-vf", filter,
	)
	if encoder != EncoderVAAPI {
		args = append(args, "-pix_fmt", "yuv420p")
	}

	return append(args,
		"-c:a", "aac",
		"-b:a", s.AudioBitrate,
		"-ac", "2",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		req.OutputPath,
	)
}

func buildSegmentArgs(mp4Path, hlsDir string) []string {
	return []string{
		"-y", "-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", mp4Path,
		"-c", "copy",
		"-f", "hls",
		"-hls_time", strconv.Itoa(hlsSegmentSecs),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(hlsDir, hlsSegmentName),
		filepath.Join(hlsDir, hlsManifestName),
	}
}

// doubleRate turns "6000k" into "12000k". Unparseable rates pass through.
func doubleRate(rate string) string {
	digits := strings.TrimRightFunc(rate, func(r rune) bool { return r < '0' || r > '9' })
	suffix := rate[len(digits):]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return rate
	}
	return strconv.Itoa(n*2) + suffix
}
