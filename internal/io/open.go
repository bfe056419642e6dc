package ioutils

import (
	"errors"
	"os/exec"
	"runtime"
)

// Open asks the OS to open the given file with its default handler.
//
// For a beatmap archive that is usually the game client, which imports it.
func Open(path string) error {
	if path == "" {
		return errors.New("open: empty path")
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		// start requires a window title argument; empty string is fine.
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}
