package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gymbody/internal/models"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.5-flash"

var ErrNoCandidates = errors.New("model returned no candidates")

// Gemini calls generateContent with the full conversation on every turn.
type Gemini struct {
	svc   *generativelanguage.Service
	model string
}

// NewGemini builds a client. Extra options are appended after the API key, which lets
// tests point the client at a local endpoint.
func NewGemini(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Gemini, error) {
	if model == "" {
		model = DefaultModel
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := generativelanguage.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}
	return &Gemini{svc: svc, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, systemInstruction string, history []models.ChatMessage, text string) (string, error) {
	contents := make([]*generativelanguage.Content, 0, len(history)+1)
	for _, m := range history {
		role := "user"
		if m.Role == RoleModel {
			role = "model"
		}
		contents = append(contents, &generativelanguage.Content{
			Role:  role,
			Parts: []*generativelanguage.Part{{Text: m.Text}},
		})
	}
	contents = append(contents, &generativelanguage.Content{
		Role:  "user",
		Parts: []*generativelanguage.Part{{Text: text}},
	})

	req := &generativelanguage.GenerateContentRequest{Contents: contents}
	if systemInstruction != "" {
		req.SystemInstruction = &generativelanguage.Content{
			Parts: []*generativelanguage.Part{{Text: systemInstruction}},
		}
	}

	resp, err := g.svc.Models.GenerateContent("models/"+g.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}

	var b strings.Builder
	if c := resp.Candidates[0].Content; c != nil {
		for _, p := range c.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}
