// Package ffmpeg locates the FFmpeg binary used for probing and chunk
// extraction. Workers require a system FFmpeg; there is no bundled copy.
package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
)

// EnvPath overrides FFmpeg binary discovery when set.
const EnvPath = "SONOSCRIBE_FFMPEG"

// Resolve returns the path to the FFmpeg binary.
// Resolution order: SONOSCRIBE_FFMPEG environment variable, then PATH lookup.
func Resolve() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%w: %s=%q: %v", ErrNotFound, EnvPath, p, err)
		}
		return p, nil
	}

	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("%w: install ffmpeg or set %s", ErrNotFound, EnvPath)
	}
	return p, nil
}
