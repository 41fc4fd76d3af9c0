package term

import "github.com/gdamore/tcell/v2"

// palette holds the styles for one theme.
type palette struct {
	text      tcell.Style
	gutter    tcell.Style
	bar       tcell.Style
	barKey    tcell.Style
	tab       tcell.Style
	activeTab tcell.Style
	status    tcell.Style
	message   tcell.Style
	pane      tcell.Style
	paneTitle tcell.Style
	errorMark tcell.Style
	styleMark tcell.Style
	prompt    tcell.Style
}

var (
	dayPalette = palette{
		text:      tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite),
		gutter:    tcell.StyleDefault.Foreground(tcell.ColorGray).Background(tcell.ColorWhite),
		bar:       tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver),
		barKey:    tcell.StyleDefault.Foreground(tcell.ColorNavy).Background(tcell.ColorSilver).Bold(true),
		tab:       tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver),
		activeTab: tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite).Bold(true),
		status:    tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy),
		message:   tcell.StyleDefault.Foreground(tcell.ColorMaroon).Background(tcell.ColorWhite).Bold(true),
		pane:      tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.NewRGBColor(0xee, 0xee, 0xee)),
		paneTitle: tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorGray),
		errorMark: tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorRed),
		styleMark: tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow),
		prompt:    tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow),
	}

	nightPalette = palette{
		text:      tcell.StyleDefault.Foreground(tcell.NewRGBColor(0xe0, 0xe0, 0xe0)).Background(tcell.NewRGBColor(0x22, 0x22, 0x22)),
		gutter:    tcell.StyleDefault.Foreground(tcell.ColorGray).Background(tcell.NewRGBColor(0x22, 0x22, 0x22)),
		bar:       tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.NewRGBColor(0x44, 0x44, 0x44)),
		barKey:    tcell.StyleDefault.Foreground(tcell.ColorAqua).Background(tcell.NewRGBColor(0x44, 0x44, 0x44)).Bold(true),
		tab:       tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.NewRGBColor(0x44, 0x44, 0x44)),
		activeTab: tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.NewRGBColor(0x22, 0x22, 0x22)).Bold(true),
		status:    tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorTeal),
		message:   tcell.StyleDefault.Foreground(tcell.ColorOrange).Background(tcell.NewRGBColor(0x22, 0x22, 0x22)).Bold(true),
		pane:      tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorBlack),
		paneTitle: tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver),
		errorMark: tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorRed),
		styleMark: tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow),
		prompt:    tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorAqua),
	}
)

func paletteFor(theme string) palette {
	if theme == "night" {
		return nightPalette
	}
	return dayPalette
}
