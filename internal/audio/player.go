package audio

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Player plays a compressed speech clip through whichever command-line player
// is installed, trying each candidate in order. Play blocks until playback
// finishes, which is what the dialogue flow needs to sequence the surface
// fade and the recorder restart.
type Player struct {
	tmpDir string

	mu      sync.Mutex
	current *exec.Cmd

	run func(name string, args ...string) error
}

func NewPlayer(tmpDir string) *Player {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	p := &Player{tmpDir: tmpDir}
	p.run = p.runCommand
	return p
}

// Play writes the clip to a temp file and plays it to completion. format is a
// short name or mime type such as "mp3" or "audio/mpeg".
func (p *Player) Play(data []byte, format string) error {
	f, err := os.CreateTemp(p.tmpDir, "speech-*."+extension(format))
	if err != nil {
		return fmt.Errorf("write speech clip: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write speech clip: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write speech clip: %w", err)
	}

	var lastErr error
	for _, candidate := range [][]string{
		{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", path},
		{"mpv", "--no-video", "--really-quiet", path},
		{"afplay", path},
		{"aplay", "-q", path},
	} {
		if _, err := exec.LookPath(candidate[0]); err != nil {
			continue
		}
		if err := p.run(candidate[0], candidate[1:]...); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("play speech clip: %w", lastErr)
	}
	return fmt.Errorf("play speech clip: no audio player found")
}

// Stop interrupts any in-flight playback.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.Process != nil {
		_ = p.current.Process.Kill()
	}
}

func (p *Player) runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)

	p.mu.Lock()
	p.current = cmd
	p.mu.Unlock()

	err := cmd.Run()

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	return err
}

func extension(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	format = strings.TrimPrefix(format, "audio/")
	switch format {
	case "", "mpeg":
		return "mp3"
	case "x-wav", "wave":
		return "wav"
	default:
		if i := strings.IndexByte(format, ';'); i >= 0 {
			format = format[:i]
		}
		return format
	}
}
