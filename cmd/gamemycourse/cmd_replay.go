package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/svchittilla/gamemycourse/internal/models"
	"github.com/svchittilla/gamemycourse/internal/tracker"
)

var (
	replayHuman bool
	replayURL   string
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayHuman, "human", false, "print a readable summary instead of JSON")
	replayCmd.Flags().StringVar(&replayURL, "url", "", "override the page url of the recording")
}

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Replay a JSON-lines event recording and print its snapshots",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	var input io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer file.Close()
		input = file
	}

	out := cmd.OutOrStdout()
	encoder := json.NewEncoder(out)
	count := 0
	return tracker.Replay(input, tracker.ReplayOptions{
		URL:              replayURL,
		IdleThreshold:    cfg.Agent.IdleThreshold.Std(),
		SnapshotSchedule: cfg.Agent.SnapshotSchedule,
	}, func(s tracker.ReplaySnapshot) error {
		count++
		if replayHuman {
			_, err := fmt.Fprintln(out, summarize(count, s))
			return err
		}
		return encoder.Encode(s)
	})
}

func summarize(n int, s tracker.ReplaySnapshot) string {
	e := s.Engagement
	label := humanize.Ordinal(n)
	if s.Final {
		label = "final"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-6s %s %s  reading %s  idle %s  away %s (%s switches)",
		s.Timestamp.Format(time.TimeOnly), label, s.SessionID, s.ContentType,
		span(e.ReadingTime), span(e.IdleTime), span(e.TabAwayTime), humanize.Comma(int64(e.TabSwitches)))
	fmt.Fprintf(&b, "  scroll %s%% of page, %s sessions",
		humanize.FtoaWithDigits(e.MaxScrollDepth*100, 1), humanize.Comma(int64(e.TotalScrolls)))
	if s.ContentType == models.ContentVideo {
		fmt.Fprintf(&b, "  video %s%% of %s, %s pauses, %s seeks",
			humanize.FtoaWithDigits(e.VideoWatchedPercentage, 1), span(e.VideoDuration),
			humanize.Comma(int64(e.PauseCount)), humanize.Comma(int64(e.SeekCount)))
	}
	return b.String()
}

// span renders whole seconds as "2 minutes", "now" for zero.
func span(seconds int64) string {
	start := time.Unix(0, 0)
	return strings.TrimSpace(humanize.RelTime(start, start.Add(time.Duration(seconds)*time.Second), "", ""))
}
