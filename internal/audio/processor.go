package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

type ConvertWAVConfig struct {
	SampleRate int // e.g. 11025, 22050, 44100
}

// ConvertToMonoWAV converts an audio file to mono PCM WAV
// and saves it to outputDir, preserving the base filename.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}

	base := filepath.Base(inputPath)
	base = base[:len(base)-len(filepath.Ext(base))] + ".wav"
	outputPath := filepath.Join(outputDir, base)

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1", // mono
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		return "", fmt.Errorf("failed to move %s to %s: %w", tmpPath, outputPath, err)
	}

	return outputPath, nil
}

// FFmpegSource captures live audio through ffmpeg, e.g. a sound card
// ("-f pulse -i default", "-f avfoundation -i :0") or a stream URL, and reads
// raw s16le mono from its stdout.
type FFmpegSource struct {
	Format     string // ffmpeg input format (-f); empty for URLs and files
	Input      string // ffmpeg input (-i)
	Rate       int
	BlockSize  int
	Executable string

	lifecycle
}

func NewFFmpegSource(format, input string) *FFmpegSource {
	return &FFmpegSource{
		Format:     format,
		Input:      input,
		Rate:       DefaultSampleRate,
		BlockSize:  DefaultBlockSize,
		Executable: "ffmpeg",
	}
}

func (s *FFmpegSource) SampleRate() int {
	if s.Rate <= 0 {
		return DefaultSampleRate
	}
	return s.Rate
}

func (s *FFmpegSource) Done() <-chan struct{} { return s.doneChan() }

func (s *FFmpegSource) Stop() error { return s.stop() }

func (s *FFmpegSource) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if s.Format != "" {
		args = append(args, "-f", s.Format)
	}
	return append(args,
		"-i", s.Input,
		"-ac", "1",
		"-ar", strconv.Itoa(s.SampleRate()),
		"-f", "s16le",
		"-",
	)
}

func (s *FFmpegSource) Start(ctx context.Context, sink func([]float64)) error {
	if s.Input == "" {
		return errors.New("ffmpeg source: no input")
	}
	runCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	exe := s.Executable
	if exe == "" {
		exe = "ffmpeg"
	}
	cmd := exec.CommandContext(runCtx, exe, s.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.finish(err)
		return err
	}
	if err := cmd.Start(); err != nil {
		s.finish(err)
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	block := s.BlockSize
	if block <= 0 {
		block = DefaultBlockSize
	}
	go func() {
		readErr := ReadPCM16(bufio.NewReader(stdout), block, sink)
		waitErr := cmd.Wait()
		if runCtx.Err() != nil {
			s.finish(runCtx.Err())
			return
		}
		if readErr != nil {
			s.finish(readErr)
			return
		}
		s.finish(waitErr)
	}()
	return nil
}

// ReadPCM16 decodes little-endian 16-bit mono PCM from r into blocks of
// the given size until EOF. A trailing partial block is delivered too.
func ReadPCM16(r io.Reader, block int, sink func([]float64)) error {
	raw := make([]byte, block*2)
	for {
		n, err := io.ReadFull(r, raw)
		if n >= 2 {
			frames := n / 2
			out := make([]float64, frames)
			for i := 0; i < frames; i++ {
				out[i] = float64(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768.0
			}
			sink(out)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return err
		}
	}
}
