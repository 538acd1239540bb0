package command

import (
	"fmt"
	"strings"

	"github.com/sandevgo/packrat/internal/service/ui"
)

// Formatter renders command output for the terminal.
type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Title(title string) string {
	return ui.TitleStyle.Render(title) + "\n"
}

func (f *Formatter) Label(label, value string) string {
	return fmt.Sprintf("%s  %s\n", ui.LabelStyle.Render(label+":"), value)
}

func (f *Formatter) List(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString("  › " + item + "\n")
	}
	return sb.String()
}

func (f *Formatter) Muted(text string) string {
	return ui.DescStyle.Render(text) + "\n"
}

func (f *Formatter) Combine(sections ...string) string {
	return strings.Join(sections, "")
}
