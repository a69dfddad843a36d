package format

import (
	"os"

	"golang.org/x/term"
)

var (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func init() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		SetColor(false)
	} else if !term.IsTerminal(int(os.Stdout.Fd())) {
		SetColor(false)
	}
}

// SetColor turns ANSI escapes on or off.
func SetColor(enabled bool) {
	if !enabled {
		Reset, Bold, Dim = "", "", ""
		Red, Green, Yellow, Cyan = "", "", "", ""
		return
	}
	Reset, Bold, Dim = "\033[0m", "\033[1m", "\033[2m"
	Red, Green, Yellow, Cyan = "\033[31m", "\033[32m", "\033[33m", "\033[36m"
}
