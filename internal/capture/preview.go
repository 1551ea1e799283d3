// ABOUTME: Markdown preview rendering for capture content
// ABOUTME: Produces sanitized-enough HTML for the inbox detail pane via goldmark

package capture

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown is the shared converter. GFM covers the link/table/strikethrough
// habits of captured notes; raw HTML in capture content stays escaped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderPreview converts capture content to HTML for display.
func RenderPreview(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("rendering preview: %w", err)
	}
	return buf.String(), nil
}

// Preview renders a capture's content, scoped to the organization.
func (s *Service) Preview(ctx context.Context, id, orgID string) (string, error) {
	c, err := s.scoped(ctx, id, orgID)
	if err != nil {
		return "", err
	}
	return RenderPreview(c.Content)
}
