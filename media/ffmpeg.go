package media

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/subfine/subfine/utils"
)

var ErrNoSegmentsProduced = fmt.Errorf("ffmpeg produced no segments")

// FFmpegTranscodeAudioFromFile transcodes the input to mono 16kHz mp3 and
// returns the encoded bytes, suitable for a speech recognition upload.
func (f *FFmpeg) FFmpegTranscodeAudioFromFile(ctx context.Context, filePath string, maxSize int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.transcodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		f.ffmpegBinary,
		"-i", filePath,
		"-c:a", "libmp3lame",
		"-ar:a", "16000",
		"-ac:a", "1",
		"-f", "mp3",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	output, err := utils.ReadAllLimit(stdout, maxSize)
	if err != nil {
		return nil, fmt.Errorf("reading output: %w", err)
	}

	err = cmd.Wait()
	if err != nil {
		return nil, fmt.Errorf("running ffmpeg: %w", err)
	}

	return output, nil
}

// FFmpegSplitAudioFromFile cuts the input into segmentSeconds-long mono
// 16kHz mp3 chunks written to dir, returning the chunk paths in playback
// order. Chunk timestamps restart at zero, the caller tracks each chunk's
// offset.
func (f *FFmpeg) FFmpegSplitAudioFromFile(ctx context.Context, filePath, dir string, segmentSeconds int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.transcodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		f.ffmpegBinary,
		"-i", filePath,
		"-f", "segment",
		"-segment_time", strconv.Itoa(segmentSeconds),
		"-reset_timestamps", "1",
		"-c:a", "libmp3lame",
		"-ar:a", "16000",
		"-ac:a", "1",
		filepath.Join(dir, "chunk_%03d.mp3"),
	)

	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("running ffmpeg segment: %w", err)
	}

	chunks, err := filepath.Glob(filepath.Join(dir, "chunk_*.mp3"))
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrNoSegmentsProduced
	}

	// chunk_%03d names sort lexicographically in playback order
	slices.Sort(chunks)

	return chunks, nil
}
