package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

var ErrFFprobeDurationInvalid = fmt.Errorf("got no packets from ffprobe, likely a bad file")

type packet struct {
	PtsTime      string `json:"pts_time"`
	DurationTime string `json:"duration_time"`
}

type ffprobePacketsOutput struct {
	Packets []packet `json:"packets"`
}

func (f *FFmpeg) ffprobeGetPacketsFromFile(ctx context.Context, filePath string) ([]packet, error) {
	cmd := exec.CommandContext(ctx,
		f.ffprobeBinary,
		"-i", filePath,
		"-v", "error",
		"-print_format", "json",
		"-show_packets",
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running ffprobe: %w", err)
	}

	var response ffprobePacketsOutput
	err = json.Unmarshal(output, &response)
	if err != nil {
		return nil, fmt.Errorf("parsing ffprobe json response: %w", err)
	}

	return response.Packets, nil
}

// FFprobeDurationFromFile gets the duration of the input file using ffprobe
//
// Scans packet metadata and takes `max pts time + duration time`. Returns
// ErrFFprobeDurationInvalid if there are no packets.
//
// Packet metadata is used because some containers don't carry duration
// metadata at all, and it tracks what a speech recognition model will
// actually process.
func (f *FFmpeg) FFprobeDurationFromFile(ctx context.Context, filePath string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.commandTimeout)
	defer cancel()

	packets, err := f.ffprobeGetPacketsFromFile(ctx, filePath)
	if err != nil {
		return 0, fmt.Errorf("getting packets: %w", err)
	}

	if len(packets) == 0 {
		return 0, ErrFFprobeDurationInvalid
	}

	var maxPts, maxDuration float64
	for _, p := range packets {
		pts, err := strconv.ParseFloat(p.PtsTime, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing pts_time: %w", err)
		}
		duration, err := strconv.ParseFloat(p.DurationTime, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing duration_time: %w", err)
		}

		if pts >= maxPts {
			maxPts = pts
			maxDuration = duration
		}
	}

	return maxPts + maxDuration, nil
}
