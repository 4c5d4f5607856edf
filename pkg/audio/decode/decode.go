// Package decode turns audio files into fixed-rate mono PCM clips.
//
// Supported containers: WAV, MP3, and FLAC natively; M4A (and anything
// else the sniffer does not recognize) through an ffmpeg subprocess when
// ffmpeg is installed. Whatever the source rate and channel layout, the
// output is mono PCM16 at the configured target rate, truncated to the
// configured maximum duration.
//
// The target rate and duration cap must match the preprocessing the
// classifier artifact was trained with; changing them silently degrades
// classification even though every downstream shape stays valid.
package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"

	"github.com/medwave/breathscan/pkg/audio/resample"
	"github.com/medwave/breathscan/pkg/audio/wav"
)

// Decode failure sentinels. A *DecodeError wraps one of these (or the
// underlying codec error); callers branch with errors.Is.
var (
	ErrEmptyAudio        = errors.New("empty audio input")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// DecodeError reports a failure to turn an input buffer into a clip.
type DecodeError struct {
	Format string // sniffed container name, "" if unknown
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Clip is a decoded, normalized audio clip: mono PCM16 at SampleRate.
// It is a transient value owned by the call that produced it.
type Clip struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Options controls normalization of decoded audio.
type Options struct {
	// TargetRate is the output sample rate in Hz.
	TargetRate int
	// MaxDuration caps the clip length in seconds. Zero means no cap.
	MaxDuration float64
}

// DefaultOptions matches the preprocessing the bronchitis classifier was
// trained with: 22050 Hz, clips capped at 3 seconds.
func DefaultOptions() Options {
	return Options{TargetRate: 22050, MaxDuration: 3.0}
}

// Format is a sniffed container type.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatM4A     Format = "m4a"
	FormatUnknown Format = ""
)

// Sniff identifies the container from magic bytes.
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return FormatFLAC
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 12 && string(data[4:8]) == "ftyp":
		return FormatM4A
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// Bare MPEG frame sync, no ID3 tag.
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// File reads and decodes an audio file from disk.
func File(ctx context.Context, path string, opts Options) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return Bytes(ctx, data, opts)
}

// Bytes decodes an in-memory audio buffer into a normalized clip.
func Bytes(ctx context.Context, data []byte, opts Options) (*Clip, error) {
	if opts.TargetRate <= 0 {
		return nil, &DecodeError{Err: fmt.Errorf("invalid target rate %d", opts.TargetRate)}
	}
	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmptyAudio}
	}

	format := Sniff(data)

	var (
		samples []int16
		rate    int
		err     error
	)
	switch format {
	case FormatWAV:
		samples, rate, err = wav.Decode(data)
	case FormatMP3:
		samples, rate, err = decodeMP3(data)
	case FormatFLAC:
		samples, rate, err = decodeFLAC(data)
	default:
		// M4A and unrecognized input go through ffmpeg, which also
		// handles resampling and downmixing.
		samples, err = ffmpegDecode(ctx, data, opts.TargetRate)
		rate = opts.TargetRate
		if err != nil && !ffmpegAvailable() {
			err = fmt.Errorf("%w (install ffmpeg for M4A and other formats)", ErrUnsupportedFormat)
		}
	}
	if err != nil {
		return nil, &DecodeError{Format: string(format), Err: err}
	}
	if len(samples) == 0 {
		return nil, &DecodeError{Format: string(format), Err: ErrEmptyAudio}
	}

	if rate != opts.TargetRate {
		samples, err = resample.Mono(samples, rate, opts.TargetRate)
		if err != nil {
			return nil, &DecodeError{Format: string(format), Err: err}
		}
	}

	if opts.MaxDuration > 0 {
		if max := int(opts.MaxDuration * float64(opts.TargetRate)); len(samples) > max {
			samples = samples[:max]
		}
	}

	return &Clip{Samples: samples, SampleRate: opts.TargetRate}, nil
}

// decodeMP3 decodes MP3 data. go-mp3 always emits 16-bit stereo frames,
// so the two channels are averaged down to mono.
func decodeMP3(data []byte) ([]int16, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}

	var samples []int16
	buf := make([]byte, 8192)
	for {
		n, err := dec.Read(buf)
		for i := 0; i+3 < n; i += 4 {
			l := int16(buf[i]) | int16(buf[i+1])<<8
			r := int16(buf[i+2]) | int16(buf[i+3])<<8
			samples = append(samples, int16((int32(l)+int32(r))/2))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}
	return samples, int(dec.SampleRate()), nil
}

// decodeFLAC decodes FLAC data, downmixing channels and rescaling the
// source bit depth to 16 bits.
func decodeFLAC(data []byte) ([]int16, int, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()

	info := stream.Info
	if info.NChannels == 0 {
		return nil, 0, fmt.Errorf("flac: zero channels")
	}
	shift := int(info.BitsPerSample) - 16

	var samples []int16
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var acc int64
			for _, sf := range frame.Subframes {
				acc += int64(sf.Samples[i])
			}
			v := acc / int64(len(frame.Subframes))
			if shift > 0 {
				v >>= shift
			} else if shift < 0 {
				v <<= -shift
			}
			samples = append(samples, int16(v))
		}
	}
	return samples, int(info.SampleRate), nil
}
