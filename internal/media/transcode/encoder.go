package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Encoder turns a source video into an HLS tree inside the source's
// directory. It blocks until the encode finishes.
type Encoder interface {
	Encode(ctx context.Context, sourcePath string) error
}

// Rendition is one variant stream of the HLS ladder.
type Rendition struct {
	Height       int
	VideoBitrate string
}

// DefaultRenditions is a two-step ladder.
var DefaultRenditions = []Rendition{
	{Height: 720, VideoBitrate: "2500k"},
	{Height: 360, VideoBitrate: "800k"},
}

const (
	MasterPlaylist  = "master.m3u8"
	variantPlaylist = "prog_index.m3u8"
	stderrTailBytes = 4096
)

// FFmpegEncoder produces master.m3u8 plus v<N>/prog_index.m3u8 and
// v<N>/fileSequence<M>.ts for each rendition.
type FFmpegEncoder struct {
	FFmpegPath     string
	FFprobePath    string
	SegmentSeconds int
	Renditions     []Rendition
}

func NewFFmpegEncoder(ffmpegPath string, segmentSeconds int) *FFmpegEncoder {
	ffprobe := "ffprobe"
	if dir := filepath.Dir(ffmpegPath); dir != "." {
		ffprobe = filepath.Join(dir, "ffprobe")
	}
	return &FFmpegEncoder{
		FFmpegPath:     ffmpegPath,
		FFprobePath:    ffprobe,
		SegmentSeconds: segmentSeconds,
		Renditions:     DefaultRenditions,
	}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, sourcePath string) error {
	if len(e.Renditions) == 0 {
		return fmt.Errorf("no renditions configured")
	}
	hasAudio, err := e.detectAudio(ctx, sourcePath)
	if err != nil {
		return fmt.Errorf("ffprobe %s: %w", filepath.Base(sourcePath), err)
	}
	args := e.buildArgs(sourcePath, filepath.Dir(sourcePath), hasAudio)
	if err := run(ctx, e.FFmpegPath, args...); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(sourcePath), err)
	}
	return nil
}

func (e *FFmpegEncoder) buildArgs(input, outputDir string, hasAudio bool) []string {
	seg := e.SegmentSeconds
	if seg <= 0 {
		seg = 6
	}
	gop := seg * 30

	args := []string{"-y", "-i", input, "-sn"}
	for range e.Renditions {
		args = append(args, "-map", "0:v:0")
		if hasAudio {
			args = append(args, "-map", "0:a:0")
		}
	}

	streamMap := make([]string, 0, len(e.Renditions))
	for i, r := range e.Renditions {
		idx := strconv.Itoa(i)
		args = append(args,
			"-filter:v:"+idx, fmt.Sprintf("scale=-2:%d", r.Height),
			"-c:v:"+idx, "libx264",
			"-b:v:"+idx, r.VideoBitrate,
		)
		entry := "v:" + idx
		if hasAudio {
			entry += ",a:" + idx
		}
		streamMap = append(streamMap, entry)
	}
	if hasAudio {
		args = append(args, "-c:a", "aac", "-ac", "2", "-b:a", "128k")
	}

	args = append(args,
		"-preset", "veryfast",
		"-g", strconv.Itoa(gop),
		"-keyint_min", strconv.Itoa(gop),
		"-sc_threshold", "0",
		"-f", "hls",
		"-hls_time", strconv.Itoa(seg),
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", filepath.Join(outputDir, "v%v", "fileSequence%d.ts"),
		"-master_pl_name", MasterPlaylist,
		"-var_stream_map", strings.Join(streamMap, " "),
		filepath.Join(outputDir, "v%v", variantPlaylist),
	)
	return args
}

func (e *FFmpegEncoder) detectAudio(ctx context.Context, input string) (bool, error) {
	cmd := exec.CommandContext(ctx, e.FFprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		input,
	)
	out, err := cmd.Output()
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return fmt.Errorf("%w: %s", err, tail)
		}
		return err
	}
	return nil
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > t.limit {
		p = p[len(p)-t.limit:]
	}
	if over := t.buf.Len() + len(p) - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
