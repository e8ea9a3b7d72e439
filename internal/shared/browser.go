package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommand returns the launcher that opens url on goos.
func browserCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "netbsd", "openbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		// start would treat the & in query strings as a command separator
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("no browser launcher for %s", goos)
	}
}

// OpenBrowser opens url in the default browser without waiting for it to exit.
func OpenBrowser(url string) error {
	name, args, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
