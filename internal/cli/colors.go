package cli

import "os"

// ANSI color codes for consistent styling across all CLI commands
const (
	Reset = "\033[0m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	White  = "\033[37m"
	Gray   = "\033[90m"

	Bold = "\033[1m"
)

// Predefined color combinations for consistency
var (
	HeaderStyle  = Cyan + Bold
	SuccessStyle = Green + Bold
	ErrorStyle   = Red + Bold
	WarningStyle = Yellow + Bold
	LabelStyle   = Cyan
	ValueStyle   = White + Bold
	MetaStyle    = Gray
)

// colorEnabled follows the NO_COLOR convention
var colorEnabled = os.Getenv("NO_COLOR") == ""

func style(s, text string) string {
	if !colorEnabled {
		return text
	}
	return s + text + Reset
}

func FormatHeader(text string) string {
	return style(HeaderStyle, text)
}

func FormatSuccess(text string) string {
	return style(SuccessStyle, text)
}

func FormatError(text string) string {
	return style(ErrorStyle, text)
}

func FormatWarning(text string) string {
	return style(WarningStyle, text)
}

func FormatMeta(text string) string {
	return style(MetaStyle, text)
}

// Format a label-value pair
func FormatLabelValue(label, value string) string {
	return style(LabelStyle, label) + " " + style(ValueStyle, value)
}
