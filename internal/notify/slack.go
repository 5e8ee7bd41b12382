package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/vladbalan/phidi/internal/crawl"
)

// RunReport is the payload of a run-completion message.
type RunReport struct {
	RunID      string
	Summary    crawl.Summary
	OutputPath string
}

// Slack posts run-completion messages to a single channel. A nil *Slack is
// a no-op, so callers never guard for missing configuration.
type Slack struct {
	client  *slack.Client
	channel string
}

// NewSlack builds a notifier for the given bot token and channel ID.
// Returns nil when either is empty.
func NewSlack(token, channel string) *Slack {
	if token == "" || channel == "" {
		return nil
	}
	return &Slack{client: slack.New(token), channel: channel}
}

// NotifyRunComplete posts the run summary to Slack. Delivery failures are
// logged and swallowed; a notification must never fail the run.
func (s *Slack) NotifyRunComplete(ctx context.Context, report RunReport) {
	if s == nil {
		return
	}

	fallback := fmt.Sprintf("Crawl run %s finished: %d/%d ok",
		report.RunID, report.Summary.OK, report.Summary.Domains)

	_, _, err := s.client.PostMessageContext(
		ctx,
		s.channel,
		slack.MsgOptionBlocks(buildRunBlocks(report)...),
		slack.MsgOptionText(fallback, false),
	)
	if err != nil {
		log.Warn().
			Err(err).
			Str("run_id", report.RunID).
			Msg("Failed to send Slack notification")
		return
	}

	log.Info().
		Str("run_id", report.RunID).
		Str("channel", s.channel).
		Msg("Slack notification sent")
}

func buildRunBlocks(report RunReport) []slack.Block {
	emoji := ":white_check_mark:"
	if report.Summary.Failed > 0 {
		emoji = ":warning:"
	}

	header := slack.NewSectionBlock(
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("%s *Crawl run complete*", emoji), false, false),
		nil,
		nil,
	)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Run:*\n%s", report.RunID), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Domains:*\n%d", report.Summary.Domains), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*OK / failed / robots:*\n%d / %d / %d",
			report.Summary.OK, report.Summary.Failed, report.Summary.RobotsDisallowed), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Elapsed:*\n%s", formatDuration(report.Summary.Elapsed)), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Throughput:*\n%.1f domains/sec", report.Summary.DomainsPerSecond()), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Output:*\n`%s`", report.OutputPath), false, false),
	}

	return []slack.Block{header, slack.NewSectionBlock(nil, fields, nil)}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
