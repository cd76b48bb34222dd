package banner

import (
	"chainq/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
        __          _
  _____/ /_  ____ _(_)___  ____ _
 / ___/ __ \/ __ '/ / __ \/ __ '/
/ /__/ / / / /_/ / / / / / /_/ /
\___/_/ /_/\__,_/_/_/ /_/\__, /
                           /_/  `

	return "\n" + style.Render(ascii) + "\n"
}
