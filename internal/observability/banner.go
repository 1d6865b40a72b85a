package observability

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func PrintBanner(w io.Writer) {
	banner := `
    ___         __              _ __      __
   /   | __  __/ /_____  ____  (_) /___  / /_
  / /| |/ / / / __/ __ \/ __ \/ / / __ \/ __/
 / ___ / /_/ / /_/ /_/ / /_/ / / / /_/ / /_
/_/  |_\__,_/\__/\____/ .___/_/_/\____/\__/
                     /_/
        >> PLAN. DISPATCH. REPORT. <<
`
	color := isTerminal(w)
	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		if color {
			fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan, l, colorReset)
		} else {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", padding), l)
		}
	}
}

// StatusLine renders a one-line summary of the process state.
func StatusLine() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := Snapshot()

	pulse := "OFFLINE"
	delta := time.Since(s.LastHeartbeat)
	if delta < 40*time.Second {
		pulse = "HEALTHY"
	} else if delta < 90*time.Second {
		pulse = "LAGGING"
	}

	task := s.Task
	if task == "" {
		task = "Waiting..."
	}
	if len(task) > 25 {
		task = task[:22] + "..."
	}

	return fmt.Sprintf("[%s] %-7s | %-9s | runs=%d | %s | up %s | %.1fMB",
		s.LastHeartbeat.Format("15:04:05"), pulse, s.Role, s.ActiveRuns, task, s.Uptime,
		float64(m.Alloc)/1024/1024)
}

// PrintStatus writes the status line, coloured when w is a terminal.
func PrintStatus(w io.Writer) {
	line := StatusLine()
	if isTerminal(w) {
		role, _, _ := GetStatus()
		c := colorNeonCyan
		if role != RoleIdle {
			c = colorNeonMag
		}
		fmt.Fprintf(w, "%s%s%s\n", c, line, colorReset)
		return
	}
	fmt.Fprintln(w, line)
}

// Colorize wraps s in the purple accent used for gateway notices.
func Colorize(s string) string {
	return colorPurple + s + colorReset
}
