package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gallery-tools/internal/models"

	log "github.com/sirupsen/logrus"
)

// Commit subject bounds accepted from generated summaries.
const (
	MinMessageLength = 10
	MaxMessageLength = 72
)

var (
	// ErrUnavailable means the summarizer could not run at all (missing binary, no API key).
	ErrUnavailable = errors.New("summarizer unavailable")
	// ErrInvalidMessage means the summarizer ran but its output is not a usable commit subject.
	ErrInvalidMessage = errors.New("generated message rejected")
	// ErrNoChanges is returned for an empty change set.
	ErrNoChanges = errors.New("no changes to summarize")
)

// Summarizer turns working tree changes into a one-line commit message.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, changes models.ChangeSet) (string, error)
}

// CleanMessage extracts a commit subject from free-form generator output: the
// last non-empty line with surrounding quotes removed, 10 to 72 characters long.
func CleanMessage(output string) (string, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			last = s
			break
		}
	}
	last = strings.TrimSpace(strings.Trim(last, `"'`+"`"))

	n := utf8.RuneCountInString(last)
	if n < MinMessageLength || n > MaxMessageLength {
		return "", fmt.Errorf("%w: %q is %d characters, want %d-%d", ErrInvalidMessage, last, n, MinMessageLength, MaxMessageLength)
	}
	return last, nil
}

// BuildPrompt describes the change set for a language model.
func BuildPrompt(changes models.ChangeSet) string {
	var b strings.Builder
	b.WriteString("You are analyzing changes to a photography portfolio website. Based on these file changes, " +
		"generate a descriptive, professional git commit message (one line, max 72 characters).\n\n")
	b.WriteString("Changed files:\n")
	for _, f := range changes.Files() {
		fmt.Fprintf(&b, "%s: %s\n", f.Action, f.Path)
	}
	if changes.DiffStat != "" {
		b.WriteString("\nDiff stat:\n")
		b.WriteString(strings.TrimSpace(changes.DiffStat))
		b.WriteString("\n")
	}
	b.WriteString(`
Rules:
- Be specific about what changed.
- If a new image is added, use its filename to name the couple or gallery.
- If Portfolio.tsx changed, say what was updated (new gallery, description change).
- If Hero.tsx changed, describe the UI change.
- If SEO or meta tags changed, mention SEO.
- Conventional commit prefixes (feat:, fix:, style:, chore:) are welcome.
- Examples:
  * "Add Olivia & Andrew gallery with SEO updates"
  * "Center hero button on mobile and update SEO keywords"
  * "Update Marianna & Paul gallery description"
- Avoid generic messages like "Add new gallery" or "Update portfolio".

Reply with the commit message only.

Commit message:`)
	return b.String()
}

// Fallback asks Primary first and degrades to Secondary on any failure.
type Fallback struct {
	Primary   Summarizer
	Secondary Summarizer
}

func (f Fallback) Name() string {
	if f.Primary == nil {
		return f.Secondary.Name()
	}
	return fmt.Sprintf("%s (fallback: %s)", f.Primary.Name(), f.Secondary.Name())
}

func (f Fallback) Summarize(ctx context.Context, changes models.ChangeSet) (string, error) {
	msg, _, err := f.SummarizeWithSource(ctx, changes)
	return msg, err
}

// SummarizeWithSource also reports which summarizer produced the message.
func (f Fallback) SummarizeWithSource(ctx context.Context, changes models.ChangeSet) (string, string, error) {
	if f.Primary != nil {
		msg, err := f.Primary.Summarize(ctx, changes)
		if err == nil {
			return msg, f.Primary.Name(), nil
		}
		log.WithError(err).Warnf("%s failed, using %s", f.Primary.Name(), f.Secondary.Name())
	}
	if chain, ok := f.Secondary.(Fallback); ok {
		return chain.SummarizeWithSource(ctx, changes)
	}
	msg, err := f.Secondary.Summarize(ctx, changes)
	if err != nil {
		return "", "", err
	}
	return msg, f.Secondary.Name(), nil
}
