package engagement

import (
	"net/url"
	"strings"

	"github.com/svchittilla/gamemycourse/internal/models"
)

// PageProfile records which content markers the page exposes.
type PageProfile struct {
	HasMedia   bool
	HasArticle bool
}

var videoURLPatterns = []string{"youtube.com", "youtu.be", "vimeo.com", "video"}

// Trackable reports whether the document has a network origin. Local files
// and browser-internal pages produce no snapshots.
func Trackable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	default:
		return false
	}
}

// Classify applies, in order: a media element, a known video URL, article
// markers, otherwise a plain webpage.
func Classify(rawURL string, profile PageProfile) models.ContentType {
	if profile.HasMedia {
		return models.ContentVideo
	}
	lower := strings.ToLower(rawURL)
	for _, pattern := range videoURLPatterns {
		if strings.Contains(lower, pattern) {
			return models.ContentVideo
		}
	}
	if profile.HasArticle {
		return models.ContentArticle
	}
	return models.ContentWebpage
}
