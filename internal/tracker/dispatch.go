package tracker

import (
	"fmt"

	"github.com/svchittilla/gamemycourse/internal/engagement"
	"github.com/svchittilla/gamemycourse/internal/models"
	"github.com/svchittilla/gamemycourse/internal/page"
)

// Apply routes one host event into the session at the event's timestamp.
// Malformed payloads are reported and leave the session unchanged. A
// navigate event to a different url starts a new session.
func Apply(session *engagement.Session, event models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if err := apply(session, event); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidEvent, err)
	}
	return nil
}

func apply(session *engagement.Session, event models.Event) error {
	now := event.Time()

	switch event.Type {
	case models.EventActivity:
		session.RecordActivity(now)

	case models.EventScroll:
		var data models.ScrollData
		if err := event.Decode(&data); err != nil {
			return err
		}
		session.Scroll(data.ScrollTop, data.ScrollableHeight, now)

	case models.EventVisibility:
		var data models.VisibilityData
		if err := event.Decode(&data); err != nil {
			return err
		}
		if data.Hidden {
			session.Hide(now)
		} else {
			session.Show(now)
		}

	case models.EventMedia:
		var data models.MediaData
		if err := event.Decode(&data); err != nil {
			return err
		}
		element := engagement.MediaElement{ID: data.Element, Width: data.Width, Height: data.Height}
		session.Media(element, data.Event, data.CurrentTime, data.Duration, now)

	case models.EventNavigate:
		var data models.NavigateData
		if err := event.Decode(&data); err != nil {
			return err
		}
		url := data.URL
		if url == "" {
			url = event.URL
		}
		if url != session.URL() {
			session.Reset(url, now)
		}

	case models.EventPage:
		var data models.PageData
		if err := event.Decode(&data); err != nil {
			return err
		}
		profile := engagement.PageProfile{HasMedia: data.HasMedia, HasArticle: data.HasArticle}
		if data.HTML != "" {
			inspected, err := page.InspectString(data.HTML)
			if err != nil {
				return fmt.Errorf("failed to inspect page markup: %w", err)
			}
			profile = inspected
		}
		session.SetPageProfile(profile)
	}
	return nil
}
