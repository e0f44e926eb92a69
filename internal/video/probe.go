package video

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
)

// StreamInfo describes the first video stream of a container.
// Width and Height are the display size, after applying the stream rotation
// the way ffmpeg's autorotate does.
type StreamInfo struct {
	Width    int
	Height   int
	Rotation int     // Degrees, normalized to [0, 360)
	Duration float64 // Seconds, 0 when unknown
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
		Tags   struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			SideDataType string  `json:"side_data_type"`
			Rotation     float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the dimensions and duration of the first video stream
func Probe(ctx context.Context, ffprobePath, videoPath string) (*StreamInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:stream_tags=rotate:stream_side_data=rotation:format=duration",
		"-of", "json",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (*StreamInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}

	stream := out.Streams[0]
	info := &StreamInfo{
		Width:  stream.Width,
		Height: stream.Height,
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", info.Width, info.Height)
	}

	// Display matrix side data wins over the legacy rotate tag
	var rotation float64
	if stream.Tags.Rotate != "" {
		if r, err := strconv.ParseFloat(stream.Tags.Rotate, 64); err == nil {
			rotation = r
		}
	}
	for _, sd := range stream.SideDataList {
		if sd.SideDataType == "Display Matrix" {
			rotation = sd.Rotation
		}
	}
	info.Rotation = normalizeRotation(rotation)
	if info.Rotation == 90 || info.Rotation == 270 {
		info.Width, info.Height = info.Height, info.Width
	}
	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	return info, nil
}

// normalizeRotation rounds to the nearest quarter turn in [0, 360)
func normalizeRotation(deg float64) int {
	r := int(math.Round(deg/90)) * 90 % 360
	if r < 0 {
		r += 360
	}
	return r
}
