package output

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
)

const markdownWidth = 80

// Markdown renders md for the terminal. Without color it falls back to the
// plain "notty" style. Rendering errors print the source unchanged.
func Markdown(w io.Writer, md string) {
	md = strings.TrimSpace(md)
	if md == "" {
		return
	}
	style := "notty"
	if colorEnabled {
		style = "auto"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(markdownWidth),
	)
	if err == nil {
		if out, renderErr := r.Render(md); renderErr == nil {
			_, _ = io.WriteString(w, out)
			return
		}
	}
	_, _ = io.WriteString(w, md+"\n")
}
