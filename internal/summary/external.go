package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"gallery-tools/internal/models"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// CommandSummarizer runs an external CLI with the prompt as its last argument
// and reads the message from stdout, e.g. ["claude", "-p"].
type CommandSummarizer struct {
	Command []string
	Timeout time.Duration
}

func (c CommandSummarizer) Name() string {
	if len(c.Command) == 0 {
		return "external command"
	}
	return c.Command[0]
}

func (c CommandSummarizer) Summarize(ctx context.Context, changes models.ChangeSet) (string, error) {
	if len(c.Command) == 0 {
		return "", fmt.Errorf("%w: no summary command configured", ErrUnavailable)
	}
	if changes.Empty() {
		return "", ErrNoChanges
	}
	bin, err := exec.LookPath(c.Command[0])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.Command[1:]...), BuildPrompt(changes))
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("Running summary command %s", c.Command[0])
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w (stderr: %s)", c.Command[0], err, strings.TrimSpace(stderr.String()))
	}
	return CleanMessage(stdout.String())
}

// GenAISummarizer asks a Gemini model for the commit message.
type GenAISummarizer struct {
	client *genai.Client
	model  string
}

// GenAIOptions configure NewGenAISummarizer.
type GenAIOptions struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client // Optional, e.g. wrapped in the API logging transport
	BaseURL    string       // Optional endpoint override
	Timeout    time.Duration
}

// NewGenAISummarizer builds a client for the Gemini API. A missing key is
// reported as ErrUnavailable so callers can fall back.
func NewGenAISummarizer(ctx context.Context, opts GenAIOptions) (*GenAISummarizer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrUnavailable)
	}
	if opts.Model == "" {
		return nil, errors.New("genai model name is empty")
	}
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		timeout := opts.Timeout
		cfg.HTTPOptions.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &GenAISummarizer{client: client, model: opts.Model}, nil
}

func (g *GenAISummarizer) Name() string { return "genai:" + g.model }

func (g *GenAISummarizer) Summarize(ctx context.Context, changes models.ChangeSet) (string, error) {
	if changes.Empty() {
		return "", ErrNoChanges
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(changes)), nil)
	if err != nil {
		return "", fmt.Errorf("genai request failed: %w", err)
	}
	return CleanMessage(resp.Text())
}
