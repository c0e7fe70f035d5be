package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Ichiritzu/MeltingICE/internal/core/ports"
)

type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	httpClient  *ResilientClient
}

func NewSlackNotifier(botToken, channel, mentionTeam string) *SlackNotifier {
	return &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		httpClient:  NewResilientClient(10*time.Second, DefaultResilientClientConfig()),
	}
}

// NotifyAutoHidden alerts the moderation channel that a report crossed
// the flag threshold and was hidden automatically. Only a moderator can
// unhide it, so this needs eyes.
func (s *SlackNotifier) NotifyAutoHidden(alert ports.AutoHideAlert) error {
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: "🚫 Report auto-hidden",
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Report*\n%s", alert.ReportID)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Tag*\n%s", alert.Tag)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Flags*\n%d", alert.FlagCount)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Confidence*\n%d", alert.Confidence)},
			},
		},
		{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("> %s\n\n%s please review and unhide or delete.", alert.Summary, s.mentionTeam),
			},
		},
	}

	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  blocks,
		Text:    fmt.Sprintf("🚫 Report %s auto-hidden after %d flags", alert.ReportID, alert.FlagCount),
	}

	return s.sendMessage(payload)
}

// NotifyFlagged alerts the moderation channel about a community flag on
// a still-visible report.
func (s *SlackNotifier) NotifyFlagged(alert ports.FlagAlert) error {
	text := fmt.Sprintf("*Report* %s flagged as *%s* (%d open flags)", alert.ReportID, alert.Reason, alert.FlagCount)
	if alert.Details != "" {
		text += fmt.Sprintf("\n> %s", alert.Details)
	}

	payload := SlackMessage{
		Channel: s.channel,
		Blocks: []SlackBlock{
			{
				Type: "section",
				Text: &SlackText{Type: "mrkdwn", Text: text},
			},
		},
		Text: fmt.Sprintf("🚩 Report %s flagged (%s)", alert.ReportID, alert.Reason),
	}

	return s.sendMessage(payload)
}

func (s *SlackNotifier) sendMessage(payload SlackMessage) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, "https://slack.com/api/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build Slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode Slack response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("Slack API error: %s", result.Error)
	}

	return nil
}

// Slack message structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Blocks  []SlackBlock `json:"blocks,omitempty"`
	Text    string       `json:"text"`
}

type SlackBlock struct {
	Type   string      `json:"type"`
	Text   *SlackText  `json:"text,omitempty"`
	Fields []SlackText `json:"fields,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
