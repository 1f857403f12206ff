package engagement

import (
	"testing"
	"time"

	"github.com/svchittilla/gamemycourse/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		profile PageProfile
		want    models.ContentType
	}{
		{"media element wins over article markers", "https://example.com/post", PageProfile{HasMedia: true, HasArticle: true}, models.ContentVideo},
		{"media element on a plain page", "https://example.com", PageProfile{HasMedia: true}, models.ContentVideo},
		{"youtube url", "https://www.youtube.com/watch?v=abc", PageProfile{HasArticle: true}, models.ContentVideo},
		{"vimeo url", "https://vimeo.com/12345", PageProfile{}, models.ContentVideo},
		{"video in path", "https://learn.example.com/Video/intro", PageProfile{}, models.ContentVideo},
		{"article markers", "https://blog.example.com/post/1", PageProfile{HasArticle: true}, models.ContentArticle},
		{"nothing special", "https://example.com/pricing", PageProfile{}, models.ContentWebpage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.url, tt.profile); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTrackable(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/page", true},
		{"http://localhost:8080/notebook", true},
		{"file:///tmp/doc.pdf", false},
		{"about:blank", false},
		{"chrome-extension://abc/popup.html", false},
		{"", false},
		{"https:///missing-host", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := Trackable(tt.url); got != tt.want {
				t.Errorf("Trackable(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestSessionMediaMakesVideo(t *testing.T) {
	session, _ := setupTestSession(t, "https://example.com/article")
	session.SetPageProfile(PageProfile{HasArticle: true})
	session.Media(MediaElement{ID: "clip"}, models.MediaLoadedMetadata, 0, 30, t0)

	snapshot, _ := session.Snapshot(t0.Add(time.Second))
	if snapshot.ContentType != models.ContentVideo {
		t.Errorf("ContentType = %s, want video once a media element is tracked", snapshot.ContentType)
	}
}
