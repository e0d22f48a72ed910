package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valter-silva-au/reposyncd/pkg/models"
)

// ReportEvent is the payload handed to the external conflict/failure
// reporter. PriorConflicts is only populated for merge conflicts.
type ReportEvent struct {
	Type            string
	ProjectPath     string
	Error           string
	Timestamp       time.Time
	ConflictedFiles []string
	PriorConflicts  []models.ConflictMatch
}

// Reporter delivers sync conflicts and failures to an external channel.
// Delivery failures are non-fatal to callers; the sync engine logs them and
// re-raises the original error unchanged.
type Reporter interface {
	Report(event ReportEvent) error
}

// slackReporter posts report events to a Slack webhook.
type slackReporter struct {
	webhookURL string
	client     *http.Client
}

// NewSlackReporter creates a Reporter that posts to the given Slack webhook URL.
func NewSlackReporter(webhookURL string) Reporter {
	return &slackReporter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Report sends the event to the configured Slack webhook.
func (s *slackReporter) Report(event ReportEvent) error {
	msg := s.buildMessage(event)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *slackReporter) buildMessage(event ReportEvent) slackMessage {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "reposyncd " + event.Type},
		},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Project:* %s\n*Time:* %s", event.ProjectPath,
		event.Timestamp.Format("2006-01-02 15:04 UTC"))
	if event.Error != "" {
		fmt.Fprintf(&b, "\n*Error:* %s", event.Error)
	}
	if len(event.ConflictedFiles) > 0 {
		fmt.Fprintf(&b, "\n*Conflicted files:* %s", strings.Join(event.ConflictedFiles, ", "))
	}
	blocks = append(blocks, slackBlock{
		Type: "section",
		Text: &slackText{Type: "mrkdwn", Text: b.String()},
	})

	if len(event.PriorConflicts) > 0 {
		var p strings.Builder
		p.WriteString("*Prior conflicts touching these files:*")
		for _, match := range event.PriorConflicts {
			fmt.Fprintf(&p, "\n- session %s at %s: %s",
				match.SessionID,
				match.Timestamp.Format("2006-01-02 15:04 UTC"),
				strings.Join(match.Files, ", "))
		}
		blocks = append(blocks, slackBlock{Type: "divider"})
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: p.String()},
		})
	}

	return slackMessage{Blocks: blocks}
}
