package update

import (
	"fmt"
	"runtime"

	"github.com/hashicorp/go-version"

	"github.com/dataferry/connector/cli/internal/ui"
)

// latestKnownVersion is the newest release the CLI knows about. Release
// automation rewrites it at build time; a stale value only means the check
// stays quiet.
var latestKnownVersion = "0.1.0"

// CheckForUpdates compares the running version against the latest known
// release and prints upgrade instructions when a newer one exists.
func CheckForUpdates(currentVersion string) error {
	current, err := version.NewVersion(currentVersion)
	if err != nil {
		return fmt.Errorf("invalid version format: %w", err)
	}

	latest, err := version.NewVersion(latestKnownVersion)
	if err != nil {
		return fmt.Errorf("invalid latest version format: %w", err)
	}

	if current.LessThan(latest) {
		ui.PrintWarning("A new version is available!")
		fmt.Printf("Current version: %s\n", currentVersion)
		fmt.Printf("Latest version:  %s\n", latestKnownVersion)
		fmt.Printf("\nUpdate with: go install github.com/dataferry/connector/cli@latest\n")
	}

	return nil
}

// GetDownloadURL returns the release download URL for the current platform.
func GetDownloadURL(v string) string {
	return fmt.Sprintf("https://github.com/dataferry/connector/releases/download/v%s/dataferry-%s-%s",
		v, runtime.GOOS, runtime.GOARCH)
}
