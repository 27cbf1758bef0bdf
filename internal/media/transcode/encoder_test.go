package transcode

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestFFmpegEncoder_BuildArgs(t *testing.T) {
	e := NewFFmpegEncoder("ffmpeg", 4)
	args := e.buildArgs("/v/abc/abc.mp4", "/v/abc", true)

	assert.Equal(t, "/v/abc/abc.mp4", argValue(args, "-i"))
	assert.Equal(t, "4", argValue(args, "-hls_time"))
	assert.Equal(t, "120", argValue(args, "-g"))
	assert.Equal(t, "v:0,a:0 v:1,a:1", argValue(args, "-var_stream_map"))
	assert.Equal(t, MasterPlaylist, argValue(args, "-master_pl_name"))
	assert.Equal(t, "scale=-2:720", argValue(args, "-filter:v:0"))
	assert.Equal(t, "800k", argValue(args, "-b:v:1"))
	assert.Equal(t, filepath.Join("/v/abc", "v%v", "fileSequence%d.ts"), argValue(args, "-hls_segment_filename"))
	assert.Equal(t, filepath.Join("/v/abc", "v%v", "prog_index.m3u8"), args[len(args)-1])
	assert.Equal(t, "aac", argValue(args, "-c:a"))
}

func TestFFmpegEncoder_BuildArgsWithoutAudio(t *testing.T) {
	e := &FFmpegEncoder{Renditions: []Rendition{{Height: 480, VideoBitrate: "1M"}}}
	args := e.buildArgs("in.mp4", "out", false)

	assert.Equal(t, "v:0", argValue(args, "-var_stream_map"))
	assert.Equal(t, "6", argValue(args, "-hls_time"))
	assert.NotContains(t, args, "0:a:0")
	assert.Empty(t, argValue(args, "-c:a"))
}

func TestFFmpegEncoder_FailureCarriesStderr(t *testing.T) {
	bin := t.TempDir()
	e := &FFmpegEncoder{
		FFmpegPath:  writeScript(t, bin, "ffmpeg", `echo "moov atom not found" >&2; exit 1`),
		FFprobePath: writeScript(t, bin, "ffprobe", `echo 1`),
		Renditions:  DefaultRenditions,
	}

	err := e.Encode(context.Background(), filepath.Join(t.TempDir(), "abc.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode abc.mp4")
	assert.Contains(t, err.Error(), "moov atom not found")
}

func TestFFmpegEncoder_ProbeFailure(t *testing.T) {
	bin := t.TempDir()
	e := &FFmpegEncoder{
		FFmpegPath:  writeScript(t, bin, "ffmpeg", `exit 0`),
		FFprobePath: writeScript(t, bin, "ffprobe", `exit 1`),
		Renditions:  DefaultRenditions,
	}

	err := e.Encode(context.Background(), "abc.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffprobe abc.mp4")
}

func TestFFmpegEncoder_Success(t *testing.T) {
	bin := t.TempDir()
	out := filepath.Join(t.TempDir(), "args")
	e := &FFmpegEncoder{
		FFmpegPath:     writeScript(t, bin, "ffmpeg", `echo "$@" > `+out),
		FFprobePath:    writeScript(t, bin, "ffprobe", `true`),
		SegmentSeconds: 2,
		Renditions:     DefaultRenditions,
	}

	require.NoError(t, e.Encode(context.Background(), "/v/abc/abc.mp4"))
	recorded, err := os.ReadFile(out)
	require.NoError(t, err)
	// ffprobe printed nothing, so no audio mapping
	assert.Contains(t, string(recorded), "-var_stream_map v:0 v:1")
}

func TestNewFFmpegEncoder_ProbeNextToFFmpeg(t *testing.T) {
	assert.Equal(t, "ffprobe", NewFFmpegEncoder("ffmpeg", 6).FFprobePath)
	assert.Equal(t, filepath.Join("/opt/ff", "ffprobe"), NewFFmpegEncoder("/opt/ff/ffmpeg", 6).FFprobePath)
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 8}
	_, _ = tb.Write([]byte("0123"))
	_, _ = tb.Write([]byte("456789"))
	assert.Equal(t, "23456789", tb.String())

	n, _ := tb.Write([]byte(strings.Repeat("x", 20) + "end"))
	assert.Equal(t, 23, n)
	assert.Equal(t, "xxxxxend", tb.String())
}
