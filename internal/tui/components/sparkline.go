package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Sparkline is a one-row chart of the most recent Width values, scaled to
// the largest visible one.
type Sparkline struct {
	Data  []uint64
	Width int
	Max   uint64
	Style lipgloss.Style
	Label string
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Style: style,
		Data:  make([]uint64, 0, width),
	}
}

func (s *Sparkline) Add(val uint64) {
	s.Data = append(s.Data, val)
	if s.Width > 0 && len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}

	s.Max = 0
	for _, v := range s.Data {
		if v > s.Max {
			s.Max = v
		}
	}
}

// Last is the most recent value, or 0.
func (s Sparkline) Last() uint64 {
	if len(s.Data) == 0 {
		return 0
	}
	return s.Data[len(s.Data)-1]
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}

	data := s.Data
	if len(data) > s.Width {
		data = data[len(data)-s.Width:]
	}

	var graph strings.Builder
	for _, v := range data {
		graph.WriteString(level(v, s.Max))
	}
	if pad := s.Width - len(data); pad > 0 {
		graph.WriteString(strings.Repeat(" ", pad))
	}

	label := fmt.Sprintf("%s: %d", s.Label, s.Last())
	return s.Style.Render(label) + "\n" + s.Style.Render(graph.String())
}

func level(v, max uint64) string {
	if max == 0 {
		return levels[0]
	}
	idx := int(float64(v) / float64(max) * float64(len(levels)-1))
	if idx >= len(levels) {
		idx = len(levels) - 1
	}
	return levels[idx]
}
