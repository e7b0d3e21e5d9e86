// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package markup renders comment content submitted as markdown into
// the HTML that request events store.
package markup

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts GitHub-flavored markdown to HTML. Raw HTML in the
// input is omitted from the output. Safe for concurrent use: goldmark
// keeps per-call state in the parse, not in the Markdown value.
type Renderer struct {
	markdown goldmark.Markdown
}

// New returns a Renderer with the GFM and definition list extensions.
func New() *Renderer {
	return &Renderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
			),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
	}
}

// Render implements request.Renderer.
func (r *Renderer) Render(markdown string) (string, error) {
	var out bytes.Buffer
	if err := r.markdown.Convert([]byte(markdown), &out); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out.String(), nil
}
