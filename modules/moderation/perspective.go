package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultAttributes are the toxicity attributes requested for every text.
var DefaultAttributes = []string{"TOXICITY", "SEVERE_TOXICITY", "INSULT", "PROFANITY", "THREAT"}

// Scorer returns per-attribute probability scores for a text.
type Scorer interface {
	Score(ctx context.Context, text string) (map[string]float64, error)
}

type analyzeRequest struct {
	Comment             analyzeComment      `json:"comment"`
	Languages           []string            `json:"languages"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
}

type analyzeComment struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	AttributeScores map[string]struct {
		SummaryScore *struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// PerspectiveClient scores text with a Perspective-compatible comment analyzer.
type PerspectiveClient struct {
	endpoint   string
	apiKey     string
	attributes []string
	languages  []string
}

var _ Scorer = (*PerspectiveClient)(nil)

// NewPerspectiveClient creates a client for the given endpoint and key.
func NewPerspectiveClient(endpoint, apiKey string, attributes ...string) *PerspectiveClient {
	if len(attributes) == 0 {
		attributes = DefaultAttributes
	}
	return &PerspectiveClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		attributes: attributes,
		languages:  []string{"en"},
	}
}

// Attributes returns the requested attribute names.
func (c *PerspectiveClient) Attributes() []string {
	return c.attributes
}

// Score sends one analyze request. The request is bounded by the context deadline.
func (c *PerspectiveClient) Score(ctx context.Context, text string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	req := analyzeRequest{
		Comment:             analyzeComment{Text: text},
		Languages:           c.languages,
		RequestedAttributes: make(map[string]struct{}, len(c.attributes)),
	}
	for _, attr := range c.attributes {
		req.RequestedAttributes[attr] = struct{}{}
	}

	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, fmt.Errorf("%w: %v", ErrRequestFailed, context.DeadlineExceeded)
		}
	}

	agent := fiber.Post(c.requestURL()).JSON(req)
	if timeout > 0 {
		agent.Timeout(timeout)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}

	var resp analyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	scores := make(map[string]float64, len(resp.AttributeScores))
	for attr, s := range resp.AttributeScores {
		if s.SummaryScore == nil {
			continue
		}
		scores[attr] = s.SummaryScore.Value
	}
	return scores, nil
}

func (c *PerspectiveClient) requestURL() string {
	if c.apiKey == "" {
		return c.endpoint
	}
	return c.endpoint + "?key=" + url.QueryEscape(c.apiKey)
}
