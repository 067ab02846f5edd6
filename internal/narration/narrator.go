// Package narration turns the combat event log into dungeon-master prose.
// It is a strictly read-only consumer: it never mutates combat state, and a
// narration failure never affects resolution.
package narration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/grimholt/skirmish/internal/game/engine"
)

// Completer is the completion capability the narrator depends on. Tests
// inject a fake; production uses AnthropicCompleter.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter creates a Completer using the default client, which
// reads ANTHROPIC_API_KEY from the environment.
//
// Precondition: model must be non-empty; maxTokens >= 1.
func NewAnthropicCompleter(model string, maxTokens int) *AnthropicCompleter {
	return &AnthropicCompleter{
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

// Complete sends one prompt and returns the concatenated text blocks.
func (a *AnthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("narration completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

const systemPrompt = `You are the dungeon master for Grimholt, a grim ` +
	`low-fantasy tactical RPG. Narrate the combat log you are given as a ` +
	`short, vivid scene in past tense. Never invent outcomes that are not ` +
	`in the log, never mention game mechanics or numbers directly, and ` +
	`keep it under three paragraphs.`

// Narrator renders batches of combat events into prose.
type Narrator struct {
	store     engine.CombatStore
	completer Completer
	logger    *zap.Logger
}

// NewNarrator creates a Narrator.
//
// Precondition: store, completer, and logger must be non-nil.
func NewNarrator(store engine.CombatStore, completer Completer, logger *zap.Logger) *Narrator {
	return &Narrator{store: store, completer: completer, logger: logger}
}

// NarrateSince narrates all events with Seq > afterSeq and returns the
// prose plus the last sequence number consumed. No events yields an empty
// string.
//
// Postcondition: Combat state is unchanged; the store sees only reads.
func (n *Narrator) NarrateSince(ctx context.Context, sessionID string, afterSeq int64) (string, int64, error) {
	events, err := n.store.ListEvents(ctx, sessionID, afterSeq)
	if err != nil {
		return "", afterSeq, fmt.Errorf("loading events for narration: %w", err)
	}
	if len(events) == 0 {
		return "", afterSeq, nil
	}

	prompt, err := renderEvents(events)
	if err != nil {
		return "", afterSeq, err
	}

	prose, err := n.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", afterSeq, err
	}

	lastSeq := events[len(events)-1].Seq
	n.logger.Debug("narrated combat events",
		zap.String("session_id", sessionID),
		zap.Int("events", len(events)),
		zap.Int64("last_seq", lastSeq),
	)
	return prose, lastSeq, nil
}

// renderEvents formats the log into a compact line-per-event prompt.
func renderEvents(events []*engine.ActionEvent) (string, error) {
	var sb strings.Builder
	sb.WriteString("Combat log:\n")
	for _, ev := range events {
		var payload map[string]any
		if len(ev.Payload) > 0 {
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				return "", fmt.Errorf("decoding payload of event %s: %w", ev.ID, err)
			}
		}
		sb.WriteString(fmt.Sprintf("- turn %d, %s", ev.TurnIndex, ev.Type))
		if len(payload) > 0 {
			parts := make([]string, 0, len(payload))
			for k, v := range payload {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			// Key order from the map is fine here; the prompt is not replayed.
			sb.WriteString(" (" + strings.Join(parts, ", ") + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
