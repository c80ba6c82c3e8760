package ffmpeg

import (
	"strings"
	"testing"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/port"
	"github.com/stretchr/testify/assert"
)

// flagValue returns the argument following flag, or "" if flag is absent.
func flagValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildTranscodeArgs_Libx264(t *testing.T) {
	req := port.TranscodeRequest{SourcePath: "/in/movie.mkv", OutputPath: "/out/movie.mp4", Preset: domain.Preset1080p}
	args := buildTranscodeArgs(EncoderLibx264, req)

	assert.Equal(t, "-y", args[0])
	assert.Equal(t, "/out/movie.mp4", args[len(args)-1])
	assert.Equal(t, "/in/movie.mkv", flagValue(args, "-i"))
	assert.Equal(t, "libx264", flagValue(args, "-c:v"))
	assert.Equal(t, "veryfast", flagValue(args, "-preset"))
	assert.Equal(t, "22", flagValue(args, "-crf"))
	assert.Equal(t, "6000k", flagValue(args, "-b:v"))
	assert.Equal(t, "6000k", flagValue(args, "-maxrate"))
	assert.Equal(t, "12000k", flagValue(args, "-bufsize"))
	assert.Equal(t, "scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2", flagValue(args, "-vf"))
	assert.Equal(t, "yuv420p", flagValue(args, "-pix_fmt"))
	assert.Equal(t, "aac", flagValue(args, "-c:a"))
	assert.Equal(t, "192k", flagValue(args, "-b:a"))
	assert.Equal(t, "+faststart", flagValue(args, "-movflags"))
	assert.Equal(t, "pipe:1", flagValue(args, "-progress"))
	assert.Contains(t, args, "-nostats")
}

func TestBuildTranscodeArgs_HardwareEncoders(t *testing.T) {
	req := port.TranscodeRequest{SourcePath: "/in/a.avi", OutputPath: "/out/a.mp4", Preset: domain.Preset480p}

	tests := []struct {
		encoder string
		check   func(t *testing.T, args []string)
	}{
		{EncoderNVENC, func(t *testing.T, args []string) {
			assert.Equal(t, "28", flagValue(args, "-cq"))
			assert.Empty(t, flagValue(args, "-crf"))
		}},
		{EncoderQSV, func(t *testing.T, args []string) {
			assert.Equal(t, "28", flagValue(args, "-global_quality"))
		}},
		{EncoderVAAPI, func(t *testing.T, args []string) {
			assert.Equal(t, defaultVAAPIDevice, flagValue(args, "-vaapi_device"))
			assert.True(t, strings.HasSuffix(flagValue(args, "-vf"), ",format=nv12,hwupload"))
			assert.NotContains(t, args, "-pix_fmt")
		}},
		{EncoderVideoToolbox, func(t *testing.T, args []string) {
			assert.Equal(t, "1500k", flagValue(args, "-b:v"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			args := buildTranscodeArgs(tt.encoder, req)
			assert.Equal(t, tt.encoder, flagValue(args, "-c:v"))
			assert.Equal(t, "128k", flagValue(args, "-b:a"))
			tt.check(t, args)
		})
	}
}

func TestBuildSegmentArgs(t *testing.T) {
	args := buildSegmentArgs("/t/7/video.mp4", "/t/7/hls")

	assert.Equal(t, "/t/7/video.mp4", flagValue(args, "-i"))
	assert.Equal(t, "copy", flagValue(args, "-c"))
	assert.Equal(t, "hls", flagValue(args, "-f"))
	assert.Equal(t, "6", flagValue(args, "-hls_time"))
	assert.Equal(t, "0", flagValue(args, "-hls_list_size"))
	assert.Equal(t, "/t/7/hls/segment_%03d.ts", flagValue(args, "-hls_segment_filename"))
	assert.Equal(t, "/t/7/hls/master.m3u8", args[len(args)-1])
}

func TestDoubleRate(t *testing.T) {
	assert.Equal(t, "3000k", doubleRate("1500k"))
	assert.Equal(t, "30000k", doubleRate("15000k"))
	assert.Equal(t, "8M", doubleRate("4M"))
	assert.Equal(t, "fast", doubleRate("fast"))
}

func TestIsSupportedEncoder(t *testing.T) {
	assert.True(t, IsSupportedEncoder("libx264"))
	assert.True(t, IsSupportedEncoder("h264_nvenc"))
	assert.False(t, IsSupportedEncoder("libx265"))
}
