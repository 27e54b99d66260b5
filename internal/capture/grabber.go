package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// ffmpegGrabber shells out to ffmpeg for single-frame JPEG grabs, one
// invocation per tick. JPEG quality is fixed near 0.7 (ffmpeg -q:v 8).
type ffmpegGrabber struct {
	args []string
}

// NewGrabber acquires the platform source for a kind. It verifies up front
// that ffmpeg exists and the source opens, so permission and missing-device
// errors surface at start rather than on the first tick.
func NewGrabber(kind Kind) (Grabber, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	args, err := grabArgs(kind)
	if err != nil {
		return nil, err
	}

	g := &ffmpegGrabber{args: args}
	if _, err := g.Grab(context.Background()); err != nil && err != ErrFrameNotReady {
		return nil, err
	}
	return g, nil
}

func grabArgs(kind Kind) ([]string, error) {
	switch runtime.GOOS {
	case "darwin":
		// avfoundation device 1 is the capture screen, 0 the built-in camera.
		if kind == KindScreen {
			return []string{"-f", "avfoundation", "-capture_cursor", "1", "-i", "1:none"}, nil
		}
		return []string{"-f", "avfoundation", "-framerate", "30", "-i", "0:none"}, nil
	default:
		if kind == KindScreen {
			return []string{"-f", "x11grab", "-i", ":0.0"}, nil
		}
		return []string{"-f", "v4l2", "-i", "/dev/video0"}, nil
	}
}

func (g *ffmpegGrabber) Grab(ctx context.Context) ([]byte, error) {
	args := append([]string{"-y", "-loglevel", "error"}, g.args...)
	args = append(args,
		"-frames:v", "1",
		"-q:v", "8",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	)

	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		detail := bytes.TrimSpace(errOut.Bytes())
		if len(detail) > 0 {
			return nil, fmt.Errorf("ffmpeg grab: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("ffmpeg grab: %w", err)
	}

	// An empty frame means the source exists but has not produced real
	// output yet; the tick is skipped rather than sending a malformed sample.
	if out.Len() == 0 {
		return nil, ErrFrameNotReady
	}
	return out.Bytes(), nil
}

func (g *ffmpegGrabber) Close() error { return nil }
