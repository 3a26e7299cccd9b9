// Package progress provides the run diagnostic sink: timestamped lines to a per-scenario
// progress file and to stdout, colored by run state.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/umputun/regcheck/pkg/config"
	"github.com/umputun/regcheck/pkg/status"
)

// Colors holds console colors derived from config.ColorConfig.
type Colors struct {
	step      *color.Color
	success   *color.Color
	pending   *color.Color
	failure   *color.Color
	timeout   *color.Color
	warn      *color.Color
	err       *color.Color
	timestamp *color.Color
	info      *color.Color
}

// NewColors builds colors from "r,g,b" config values. Empty or malformed values print uncolored.
func NewColors(cfg config.ColorConfig) *Colors {
	return &Colors{
		step:      rgb(cfg.Step),
		success:   rgb(cfg.Success),
		pending:   rgb(cfg.Pending),
		failure:   rgb(cfg.Failure),
		timeout:   rgb(cfg.Timeout),
		warn:      rgb(cfg.Warn),
		err:       rgb(cfg.Error),
		timestamp: rgb(cfg.Timestamp),
		info:      rgb(cfg.Info),
	}
}

// Info returns the color for informational console output.
func (c *Colors) Info() *color.Color { return c.info }

// Warn returns the warning color.
func (c *Colors) Warn() *color.Color { return c.warn }

// Error returns the error color.
func (c *Colors) Error() *color.Color { return c.err }

// State returns the color for lines logged while the run is in state s.
func (c *Colors) State(s status.State) *color.Color {
	switch s {
	case status.StateSuccess, status.StateGenericSuccess:
		return c.success
	case status.StatePaymentPending:
		return c.pending
	case status.StateFailure, status.StateAborted:
		return c.failure
	case status.StateTimeout:
		return c.timeout
	default:
		return c.step
	}
}

func rgb(s string) *color.Color {
	plain := func() *color.Color {
		c := color.New()
		c.DisableColor()
		return c
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return plain()
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return plain()
		}
		v[i] = n
	}
	return color.RGB(v[0], v[1], v[2])
}

// Config holds logger configuration.
type Config struct {
	Scenario string  // scenario name, used to derive the progress filename
	URL      string  // scenario start url, written to the header
	Revision string  // suite revision, written to the header
	Dir      string  // directory for progress files, current dir if empty
	NoColor  bool    // disable color output (sets color.NoColor globally)
	Colors   *Colors // nil uses embedded default colors
}

// Logger writes timestamped output to both a progress file and stdout.
// Safe for concurrent use, background report goroutines log through it.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	stdout    io.Writer
	startTime time.Time
	state     status.State
	colors    *Colors
}

// NewLogger creates a logger writing to progress-<scenario>.txt and stdout.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.NoColor {
		color.NoColor = true
	}
	colors := cfg.Colors
	if colors == nil {
		colors = defaultColors()
	}

	progressPath := filepath.Join(cfg.Dir, progressFilename(cfg.Scenario))
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create progress dir: %w", err)
		}
	}

	f, err := os.Create(progressPath) //nolint:gosec // path derived from scenario name
	if err != nil {
		return nil, fmt.Errorf("create progress file: %w", err)
	}

	l := &Logger{file: f, stdout: os.Stdout, startTime: time.Now(), state: status.StateStart, colors: colors}

	l.writeFile("# regcheck progress log\n")
	l.writeFile("Scenario: %s\n", cfg.Scenario)
	l.writeFile("URL: %s\n", cfg.URL)
	if cfg.Revision != "" {
		l.writeFile("Revision: %s\n", cfg.Revision)
	}
	l.writeFile("Started: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	l.writeFile("%s\n\n", strings.Repeat("-", 60))

	return l, nil
}

// Path returns the progress file path.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// State returns the last state set.
func (l *Logger) State() status.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SetState records a run state transition and logs it in the new state's color.
func (l *Logger) SetState(s status.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
	l.line("-> "+string(s), l.colors.State(s))
}

// timestampFormat is the format for timestamps: YY-MM-DD HH:MM:SS
const timestampFormat = "06-01-02 15:04:05"

// Print writes a timestamped message to both file and stdout.
// Messages prefixed with [WARN] use the warning color.
func (l *Logger) Print(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.colors.State(l.state)
	if strings.HasPrefix(msg, "[WARN]") {
		c = l.colors.warn
	}
	l.line(msg, c)
}

// Warn writes a warning message.
func (l *Logger) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.line("WARN: "+msg, l.colors.warn)
}

// Error writes an error message.
func (l *Logger) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.line("ERROR: "+msg, l.colors.err)
}

// PrintAligned writes multi-line text, timestamping the first line and indenting the rest.
// Long lines are wrapped to the terminal width. Used for rendered failure summaries.
func (l *Logger) PrintAligned(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	timestamp := time.Now().Format(timestampFormat)
	c := l.colors.info
	indent := strings.Repeat(" ", 20) // aligns with "[YY-MM-DD HH:MM:SS] "
	width := terminalWidth()

	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		if visibleLen(line) > width {
			lines = append(lines, strings.Split(wrapText(line, width), "\n")...)
			continue
		}
		lines = append(lines, line)
	}
	for i, line := range lines {
		switch {
		case line == "":
			l.writeFile("\n")
			l.writeStdout("\n")
		case i == 0:
			l.writeFile("[%s] %s\n", timestamp, line)
			l.writeStdout("%s %s\n", l.colors.timestamp.Sprintf("[%s]", timestamp), c.Sprint(line))
		default:
			l.writeFile("%s%s\n", indent, line)
			l.writeStdout("%s%s\n", indent, c.Sprint(line))
		}
	}
}

// Elapsed returns formatted elapsed time since start.
func (l *Logger) Elapsed() string {
	return humanize.RelTime(l.startTime, time.Now(), "", "")
}

// Close writes footer and closes the progress file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}

	l.writeFile("\n%s\n", strings.Repeat("-", 60))
	l.writeFile("Completed: %s, %s (%s)\n", time.Now().Format("2006-01-02 15:04:05"), l.state, l.Elapsed())

	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close progress file: %w", err)
	}
	return nil
}

// line writes msg with a timestamp; caller holds mu.
func (l *Logger) line(msg string, c *color.Color) {
	timestamp := time.Now().Format(timestampFormat)
	l.writeFile("[%s] %s\n", timestamp, msg)
	l.writeStdout("%s %s\n", l.colors.timestamp.Sprintf("[%s]", timestamp), c.Sprint(msg))
}

func (l *Logger) writeFile(format string, args ...any) {
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
}

func (l *Logger) writeStdout(format string, args ...any) {
	fmt.Fprintf(l.stdout, format, args...)
}

// terminalWidth returns the content width: COLUMNS or the tty width minus the
// timestamp prefix, 60 when neither is known.
func terminalWidth() int {
	const minWidth, prefix = 40, 20
	w := 0
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		w = cols
	} else if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw > 0 {
		w = tw
	}
	if w == 0 {
		return 80 - prefix
	}
	return max(w-prefix, minWidth)
}

// wrapText wraps text to width, breaking on word boundaries.
func wrapText(text string, width int) string {
	words := strings.Fields(text)
	if width <= 0 || len(words) == 0 {
		return text
	}
	var b strings.Builder
	lineLen := 0
	for i, word := range words {
		switch {
		case i == 0:
			lineLen = len(word)
		case lineLen+1+len(word) <= width:
			b.WriteString(" ")
			lineLen += 1 + len(word)
		default:
			b.WriteString("\n")
			lineLen = len(word)
		}
		b.WriteString(word)
	}
	return b.String()
}

// visibleLen is the length of s without ANSI escape sequences.
func visibleLen(s string) int {
	n, esc := 0, false
	for _, r := range s {
		switch {
		case r == '\x1b':
			esc = true
		case esc:
			if unicode.IsLetter(r) {
				esc = false
			}
		default:
			n++
		}
	}
	return n
}

// progressFilename returns progress-<scenario>.txt with the name reduced to [a-z0-9-].
func progressFilename(scenario string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return unicode.ToLower(r)
		default:
			return '-'
		}
	}, scenario)
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		return "progress.txt"
	}
	return "progress-" + slug + ".txt"
}

func defaultColors() *Colors {
	return &Colors{
		step:      color.New(color.FgWhite),
		success:   color.New(color.FgGreen),
		pending:   color.New(color.FgCyan),
		failure:   color.New(color.FgRed),
		timeout:   color.New(color.FgYellow),
		warn:      color.New(color.FgYellow),
		err:       color.New(color.FgRed),
		timestamp: color.New(color.FgWhite),
		info:      color.New(color.FgWhite),
	}
}
