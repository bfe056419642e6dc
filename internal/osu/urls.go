package osu

import (
	"fmt"
	"strings"

	"github.com/handiism/quicksong/internal/model"
)

// DefaultBaseURL is the root of the beatmap service.
const DefaultBaseURL = "https://osu.ppy.sh"

// DefaultErrorPagePath is where the service redirects refused downloads.
const DefaultErrorPagePath = "/p/error"

// DownloadURL returns the archive URL of a set, without its video.
func DownloadURL(base string, id model.ResourceID) string {
	return fmt.Sprintf("%s/beatmapsets/%d/download?noVideo=1", trimBase(base), id)
}

// SetURL returns the page URL of a set.
func SetURL(base string, id model.ResourceID) string {
	return fmt.Sprintf("%s/beatmapsets/%d", trimBase(base), id)
}

// SessionURL returns the login endpoint.
func SessionURL(base string) string {
	return trimBase(base) + "/session"
}

func trimBase(base string) string {
	if base == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(base, "/")
}
