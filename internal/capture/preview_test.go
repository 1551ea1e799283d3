// ABOUTME: Unit tests for markdown preview rendering of capture content
// ABOUTME: Checks formatting, autolinks, and that raw HTML stays escaped

package capture

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPreview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "emphasis", content: "a **bold** claim", want: "<strong>bold</strong>"},
		{name: "heading", content: "# Inbox zero", want: "<h1>Inbox zero</h1>"},
		{name: "strikethrough", content: "~~done~~", want: "<del>done</del>"},
		{name: "autolink", content: "see https://example.com/doc", want: `<a href="https://example.com/doc"`},
		{name: "list", content: "- one\n- two", want: "<li>one</li>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderPreview(tt.content)
			require.NoError(t, err)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestRenderPreview_EscapesRawHTML(t *testing.T) {
	got, err := RenderPreview(`<script>alert("captured")</script>`)
	require.NoError(t, err)
	assert.NotContains(t, got, "<script>")
}

func TestPreview_ScopedToOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.capture(t, "remember to *water* the plants")

	html, err := f.svc.Preview(ctx, c.ID, "org-1")
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "<em>water</em>"), "html = %q", html)

	_, err = f.svc.Preview(ctx, c.ID, "org-2")
	assert.ErrorIs(t, err, ErrCaptureNotFound)
}
