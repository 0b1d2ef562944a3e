package app

import (
	"context"
	"errors"
	"fmt"
)

// MaxPreviewTemplateLength bounds preview input.
const MaxPreviewTemplateLength = 1024

// ErrTemplateTooLong is returned for preview templates over the limit.
var ErrTemplateTooLong = errors.New("template too long")

// PreviewUsecase renders arbitrary templates.
type PreviewUsecase interface {
	Preview(ctx context.Context, template string) (PreviewResult, error)
	Tokens(ctx context.Context) []string
}

// PreviewResult represents the preview response. ContextAvailable is false
// when no in-world snapshot exists and every token fell back.
type PreviewResult struct {
	Rendered         string `json:"rendered"`
	ContextAvailable bool   `json:"context_available"`
}

// Renderer renders templates against the latest context.
// *driver.Driver implements it.
type Renderer interface {
	Preview(template string) (string, bool)
	Tokens() []string
}

// PreviewService implements PreviewUsecase.
type PreviewService struct {
	Renderer Renderer
}

// Preview renders template.
func (s PreviewService) Preview(ctx context.Context, template string) (PreviewResult, error) {
	if len(template) > MaxPreviewTemplateLength {
		return PreviewResult{}, fmt.Errorf("%w: %d bytes, max %d", ErrTemplateTooLong, len(template), MaxPreviewTemplateLength)
	}
	rendered, ok := s.Renderer.Preview(template)
	return PreviewResult{Rendered: rendered, ContextAvailable: ok}, nil
}

// Tokens lists the supported token names.
func (s PreviewService) Tokens(ctx context.Context) []string {
	return s.Renderer.Tokens()
}
