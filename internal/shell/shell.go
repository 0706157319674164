// Package shell is the interactive line-oriented front end of a search session.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/hyperjump/hondana/internal/cli"
	"github.com/hyperjump/hondana/internal/location"
	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/session"
	"github.com/hyperjump/hondana/internal/storage"
)

const prompt = "hondana> "

const helpText = `Type a query and press Enter to search. Words are ANDed; "OR" between
the first two words ORs them. Commands:
  :n, :p          next / previous page
  :page N         go to page N
  :k HIT KW       refine the query with keyword KW of hit HIT
  :x HIT          expand or collapse the highlights of hit HIT
  :c HIT          copy the location of hit HIT
  :clear          clear the query and results
  :history [N]    show recent searches
  :settings       show settings
  :set KEY VALUE  change a setting
  :help           show this help
  :q              quit
`

// Shell reads commands from in and renders the session to out.
type Shell struct {
	machine  *session.Machine
	settings session.SettingsSource
	in       *bufio.Scanner
	out      io.Writer
	renderer *cli.Renderer
	color    bool
	history  storage.History
	setter   func(key, value string) error
	copy     func(string) error
	exists   func(location.Location) bool
	logger   *zap.Logger

	expanded map[string]bool
	seq      uint64
}

// Option configures a Shell.
type Option func(*Shell)

// WithHistory enables :history.
func WithHistory(h storage.History) Option {
	return func(s *Shell) { s.history = h }
}

// WithSettingsEditor enables :set; fn persists one setting.
func WithSettingsEditor(fn func(key, value string) error) Option {
	return func(s *Shell) { s.setter = fn }
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(s *Shell) { s.copy = fn }
}

// WithExistsProbe replaces the local file existence check used by :c.
func WithExistsProbe(fn func(location.Location) bool) Option {
	return func(s *Shell) { s.exists = fn }
}

// WithColor turns ANSI styling on or off.
func WithColor(on bool) Option {
	return func(s *Shell) { s.color = on }
}

// WithLogger sets a logger for command tracing.
func WithLogger(l *zap.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// New returns a shell driving machine.
func New(machine *session.Machine, settings session.SettingsSource, in io.Reader, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		machine:  machine,
		settings: settings,
		in:       bufio.NewScanner(in),
		out:      out,
		copy:     clipboard.WriteAll,
		exists:   location.Location.Exists,
		logger:   zap.NewNop(),
		expanded: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.renderer = cli.NewRenderer(settings.Settings().PageSize, s.color)
	s.renderer.Expanded = func(id string) bool { return s.expanded[id] }
	machine.OnChange(func(snap session.Session) {
		if snap.State == session.Loading {
			fmt.Fprintln(s.out, "Searching...")
		}
	})
	return s
}

// Run processes lines until :q, end of input, or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, `hondana: type a query, or :help for commands.`)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(s.out, prompt)
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		if quit := s.Handle(ctx, s.in.Text()); quit {
			return nil
		}
	}
}

// Handle processes one input line and reports whether the shell should exit.
// A pending error notice is acknowledged by the line before it is processed.
func (s *Shell) Handle(ctx context.Context, line string) bool {
	if s.machine.Snapshot().State == session.Failed {
		s.machine.ClearError()
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		s.show(s.machine.SubmitSearch(ctx, line, 1))
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	s.logger.Debug("shell command", zap.String("cmd", cmd), zap.Strings("args", args))
	switch cmd {
	case ":q", ":quit":
		return true
	case ":help", ":h":
		fmt.Fprint(s.out, helpText)
	case ":n":
		s.turnPage(ctx, s.machine.Snapshot().Page+1)
	case ":p":
		s.turnPage(ctx, s.machine.Snapshot().Page-1)
	case ":page":
		if n, ok := s.intArg(args, 0, "page"); ok {
			s.turnPage(ctx, n)
		}
	case ":k":
		s.refine(ctx, args)
	case ":x":
		s.toggle(args)
	case ":c":
		s.copyLocation(args)
	case ":clear":
		s.show(s.machine.Clear())
	case ":history":
		s.showHistory(ctx, args)
	case ":settings":
		cli.WriteSettings(s.out, s.settings.Settings())
	case ":set":
		s.set(args)
	default:
		fmt.Fprintf(s.out, "unknown command %s (try :help)\n", cmd)
	}
	return false
}

func (s *Shell) show(snap session.Session) {
	if snap.Seq != s.seq {
		s.expanded = make(map[string]bool)
		s.seq = snap.Seq
	}
	s.renderer.PageSize = s.settings.Settings().PageSize
	_ = s.renderer.Write(s.out, snap, cli.OutputText)
	if snap.State == session.Failed {
		fmt.Fprintln(s.out, "(press Enter to dismiss)")
	}
}

func (s *Shell) turnPage(ctx context.Context, page int) {
	snap := s.machine.Snapshot()
	if snap.State != session.Populated {
		fmt.Fprintln(s.out, "no results to page through")
		return
	}
	pages := models.PageCount(snap.Total(), s.settings.Settings().PageSize)
	if page < 1 || page > pages {
		fmt.Fprintf(s.out, "page must be between 1 and %d\n", pages)
		return
	}
	s.show(s.machine.ChangePage(ctx, page))
}

func (s *Shell) hit(args []string, i int) (models.Hit, bool) {
	n, ok := s.intArg(args, i, "hit number")
	if !ok {
		return models.Hit{}, false
	}
	hit, ok := s.machine.Snapshot().Hit(n)
	if !ok {
		fmt.Fprintf(s.out, "no hit %d on this page\n", n)
	}
	return hit, ok
}

func (s *Shell) refine(ctx context.Context, args []string) {
	hit, ok := s.hit(args, 0)
	if !ok {
		return
	}
	k, ok := s.intArg(args, 1, "keyword number")
	if !ok {
		return
	}
	if k < 1 || k > len(hit.Keywords) {
		fmt.Fprintf(s.out, "hit has %d keywords\n", len(hit.Keywords))
		return
	}
	s.show(s.machine.RefineWithTerm(ctx, hit.Keywords[k-1]))
}

func (s *Shell) toggle(args []string) {
	hit, ok := s.hit(args, 0)
	if !ok {
		return
	}
	s.expanded[hit.ID] = !s.expanded[hit.ID]
	s.show(s.machine.Snapshot())
}

func (s *Shell) copyLocation(args []string) {
	hit, ok := s.hit(args, 0)
	if !ok {
		return
	}
	text, msg := location.Parse(hit.URL).CopyTarget(s.exists)
	if err := s.copy(text); err != nil {
		fmt.Fprintf(s.out, "Failed to copy: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s: %s\n", msg, text)
}

func (s *Shell) showHistory(ctx context.Context, args []string) {
	if s.history == nil {
		fmt.Fprintln(s.out, "history is not available")
		return
	}
	limit := 20
	if len(args) > 0 {
		n, ok := s.intArg(args, 0, "limit")
		if !ok {
			return
		}
		limit = n
	}
	entries, err := s.history.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(s.out, "Failed to read history: %v\n", err)
		return
	}
	_ = cli.WriteHistory(s.out, entries, cli.OutputText)
}

func (s *Shell) set(args []string) {
	if s.setter == nil {
		fmt.Fprintln(s.out, "settings are read-only")
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(s.out, "usage: :set KEY VALUE")
		return
	}
	if err := s.setter(args[0], strings.Join(args[1:], " ")); err != nil {
		fmt.Fprintf(s.out, "Failed to update settings: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s updated\n", args[0])
}

func (s *Shell) intArg(args []string, i int, name string) (int, bool) {
	if i >= len(args) {
		fmt.Fprintf(s.out, "missing %s\n", name)
		return 0, false
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		fmt.Fprintf(s.out, "invalid %s %q\n", name, args[i])
		return 0, false
	}
	return n, true
}
