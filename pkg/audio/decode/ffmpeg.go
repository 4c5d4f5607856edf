package decode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
)

// ffmpegPath is resolved once; tests may override it.
var (
	ffmpegOnce   sync.Once
	ffmpegBinary string
)

func ffmpegAvailable() bool {
	ffmpegOnce.Do(func() {
		if p, err := exec.LookPath("ffmpeg"); err == nil {
			ffmpegBinary = p
		}
	})
	return ffmpegBinary != ""
}

// ffmpegDecode pipes the input through ffmpeg and reads back raw mono
// PCM16 at the target rate. Used for M4A/AAC and any container the
// native decoders do not cover.
func ffmpegDecode(ctx context.Context, data []byte, targetRate int) ([]int16, error) {
	if !ffmpegAvailable() {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", ErrUnsupportedFormat)
	}

	cmd := exec.CommandContext(ctx, ffmpegBinary,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(targetRate),
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return nil, fmt.Errorf("ffmpeg: %s", msg)
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	raw := out.Bytes()
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	return samples, nil
}
