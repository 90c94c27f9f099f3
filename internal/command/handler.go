package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"pkt.systems/netbrowser/core"
	"pkt.systems/netbrowser/internal/format"
	"pkt.systems/netbrowser/internal/logx"
	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// ErrQuit is returned by Handle for /quit.
var ErrQuit = errors.New("quit")

var helpLines = []string{
	"commands:",
	"  <text>                 open a URL or search in the current or a new session",
	"  /open <text>           same as plain input",
	"  /new                   open a new session with the homepage",
	"  /close [n]             close session n (default: active)",
	"  /tab <n>               switch to session n",
	"  /pin [n]               pin or unpin session n (default: active)",
	"  /tabs                  list sessions",
	"  /back /forward         navigate the active session",
	"  /reload /retry         reload, or clear the error view and reload",
	"  /find <text>           find in page; /next /prev move, /endfind closes",
	"  /zoom <factor>         set zoom for every session (0.25-5)",
	"  /bookmark              toggle a bookmark for the active page",
	"  /bookmarks             list bookmarks",
	"  /history [term]        list or search history; /rmhistory <id> removes",
	"  /downloads             list downloads; /cleardownloads forgets them",
	"  /opendownload <n>      open a completed download; /showdownload <n> reveals it",
	"  /downloadfolder        choose the download folder",
	"  /page <name>           open settings, history or downloads",
	"  /clear <kind>          clear history, bookmarks, cache or cookies",
	"  /set <key> <value>     change a preference",
	"  /theme [name]          toggle or select the theme",
	"  /about                 show version information",
	"  /quit                  exit",
}

// Handler routes REPL input to shell operations and prints results.
type Handler struct {
	shell    *core.Shell
	renderer *format.PlainRenderer
	log      pslog.Logger

	mu  sync.Mutex
	out io.Writer
}

// NewHandler constructs a command handler writing to out.
func NewHandler(shell *core.Shell, out io.Writer, logger pslog.Logger) *Handler {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if out == nil {
		out = io.Discard
	}
	return &Handler{shell: shell, renderer: format.NewPlainRenderer(), log: logger, out: out}
}

// Print writes lines to the handler output. It is safe for concurrent use
// so event printers can share the terminal with the REPL.
func (h *Handler) Print(lines ...string) {
	if len(lines) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, line := range lines {
		_, _ = fmt.Fprintln(h.out, line)
	}
}

// Prompt writes p without a trailing newline.
func (h *Handler) Prompt(p string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = io.WriteString(h.out, p)
}

// Renderer returns the renderer used for output.
func (h *Handler) Renderer() *format.PlainRenderer {
	return h.renderer
}

// Handle executes one line of input. Plain text smart-navigates; lines
// starting with "/" are commands.
func (h *Handler) Handle(ctx context.Context, input string) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	if strings.TrimSpace(input) == "" {
		return nil
	}
	cmd, ok := Parse(input)
	if !ok {
		return h.handleOpen(ctx, strings.TrimSpace(input))
	}
	log := h.log.With("command", cmd.Name, "args", len(cmd.Args))
	log.Debug("command slash request")
	switch cmd.Name {
	case "":
		return fmt.Errorf("invalid command")
	case "open":
		if cmd.Remainder == "" {
			return fmt.Errorf("usage: /open <url|search>")
		}
		return h.handleOpen(ctx, cmd.Remainder)
	case "new":
		return h.handleNew(ctx)
	case "close":
		return h.handleClose(ctx, cmd)
	case "tab":
		return h.handleTab(cmd)
	case "pin":
		return h.handlePin(cmd)
	case "tabs":
		h.Print(h.renderer.FormatSessions(h.shell.Sessions())...)
		return nil
	case "back":
		return h.shell.Back(ctx)
	case "forward":
		return h.shell.Forward(ctx)
	case "reload":
		return h.shell.Reload(ctx)
	case "retry":
		return h.shell.Retry(ctx)
	case "find":
		return h.shell.Find(ctx, cmd.Remainder)
	case "next":
		return h.shell.FindNext(ctx, true)
	case "prev":
		return h.shell.FindNext(ctx, false)
	case "endfind":
		return h.shell.CloseFind(ctx)
	case "zoom":
		return h.handleZoom(ctx, cmd)
	case "bookmark":
		return h.handleBookmark()
	case "bookmarks":
		h.Print(h.renderer.FormatBookmarks(h.shell.Bookmarks().List())...)
		return nil
	case "history":
		h.Print(h.renderer.FormatHistory(h.shell.History().Search(cmd.Remainder))...)
		return nil
	case "rmhistory":
		return h.handleRemoveHistory(cmd)
	case "downloads":
		h.Print(h.renderer.FormatDownloads(h.shell.Downloads().Records())...)
		return nil
	case "cleardownloads":
		h.shell.Downloads().Clear()
		h.Print("downloads cleared")
		return nil
	case "opendownload", "showdownload":
		return h.handleDownloadAction(ctx, cmd)
	case "downloadfolder":
		return h.handleDownloadFolder(ctx)
	case "page":
		return h.handlePage(ctx, cmd)
	case "clear":
		return h.handleClear(ctx, cmd)
	case "set":
		return h.handleSet(ctx, cmd)
	case "theme":
		return h.handleTheme(cmd)
	case "about":
		h.Print(h.renderer.FormatAppInfo(h.shell.AppInfo(ctx))...)
		return nil
	case "help":
		h.Print(helpLines...)
		return nil
	case "quit":
		return ErrQuit
	default:
		log.Debug("command slash rejected", "reason", "unknown")
		return fmt.Errorf("unknown command: /%s", cmd.Alias)
	}
}

func (h *Handler) handleOpen(ctx context.Context, input string) error {
	id, err := h.shell.Open(ctx, input)
	if err != nil {
		return err
	}
	logx.WithSession(ctx, id).Debug("command open", "input_len", len(input))
	return nil
}

func (h *Handler) handleNew(ctx context.Context) error {
	_, err := h.shell.NewSession(ctx)
	return err
}

func (h *Handler) handleClose(ctx context.Context, cmd Command) error {
	sess, err := h.sessionArg(cmd, "/close [n]")
	if err != nil {
		return err
	}
	h.shell.CloseSession(ctx, sess.ID)
	return nil
}

func (h *Handler) handleTab(cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /tab <n>")
	}
	sess, err := h.sessionArg(cmd, "/tab <n>")
	if err != nil {
		return err
	}
	h.shell.ActivateSession(sess.ID)
	return nil
}

func (h *Handler) handlePin(cmd Command) error {
	sess, err := h.sessionArg(cmd, "/pin [n]")
	if err != nil {
		return err
	}
	h.shell.TogglePin(sess.ID)
	return nil
}

// sessionArg resolves an optional 1-based position to a session, defaulting
// to the active one.
func (h *Handler) sessionArg(cmd Command, usage string) (schema.Session, error) {
	if len(cmd.Args) == 0 {
		sess, ok := h.shell.ActiveSession()
		if !ok {
			return schema.Session{}, schema.ErrSessionNotFound
		}
		return sess, nil
	}
	idx, ok := cmd.Position()
	if !ok {
		return schema.Session{}, fmt.Errorf("usage: %s", usage)
	}
	sess, ok := h.shell.Registry().At(idx)
	if !ok {
		return schema.Session{}, fmt.Errorf("no session %d: %w", idx+1, schema.ErrSessionNotFound)
	}
	return sess, nil
}

func (h *Handler) handleZoom(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		h.Print(fmt.Sprintf("zoom %.2f", h.shell.Settings().Preferences().Zoom))
		return nil
	}
	zoom, err := strconv.ParseFloat(strings.TrimSuffix(cmd.Args[0], "x"), 64)
	if err != nil {
		return fmt.Errorf("usage: /zoom <factor>")
	}
	return h.shell.SetZoom(ctx, zoom)
}

func (h *Handler) handleBookmark() error {
	on, err := h.shell.ToggleBookmark()
	if err != nil {
		return err
	}
	if on {
		h.Print("bookmarked")
	} else {
		h.Print("not bookmarked")
	}
	return nil
}

func (h *Handler) handleRemoveHistory(cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /rmhistory <id>")
	}
	if !h.shell.History().Delete(schema.HistoryID(cmd.Args[0])) {
		return fmt.Errorf("no history entry %s", cmd.Args[0])
	}
	h.Print("history entry removed")
	return nil
}

func (h *Handler) handleDownloadAction(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /%s <n|id>", cmd.Name)
	}
	id := schema.DownloadID(cmd.Args[0])
	if idx, ok := cmd.Position(); ok {
		records := h.shell.Downloads().Records()
		if idx >= len(records) {
			return fmt.Errorf("no download %d: %w", idx+1, schema.ErrDownloadNotFound)
		}
		id = records[idx].ID
	}
	var ok bool
	if cmd.Name == "opendownload" {
		ok = h.shell.OpenDownload(ctx, id)
	} else {
		ok = h.shell.ShowDownloadInFolder(ctx, id)
	}
	if !ok {
		return fmt.Errorf("download %s is not available", id)
	}
	return nil
}

func (h *Handler) handleDownloadFolder(ctx context.Context) error {
	path := h.shell.Settings().SelectDownloadFolder(ctx)
	if path == "" {
		h.Print("download folder unchanged; use /set download_path <dir>")
		return nil
	}
	h.Print("downloads go to " + path)
	return nil
}

func (h *Handler) handlePage(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /page <settings|history|downloads|newtab>")
	}
	name := strings.ToLower(cmd.Args[0])
	_, err := h.shell.OpenPage(ctx, schema.InternalScheme+"://"+name)
	return err
}

func (h *Handler) handleClear(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /clear <history|bookmarks|cache|cookies>")
	}
	kind := schema.BrowsingDataKind(strings.ToLower(cmd.Args[0]))
	if !h.shell.ClearBrowsingData(ctx, kind) {
		return fmt.Errorf("clear %s failed", kind)
	}
	h.Print(fmt.Sprintf("%s cleared", kind))
	return nil
}

func (h *Handler) handleSet(ctx context.Context, cmd Command) error {
	key, value, ok := cmd.KeyValue()
	if !ok {
		return fmt.Errorf("usage: /set <key> <value>")
	}
	if err := h.shell.Settings().Set(ctx, key, value); err != nil {
		return err
	}
	h.Print(fmt.Sprintf("%s = %s", key, value))
	return nil
}

func (h *Handler) handleTheme(cmd Command) error {
	settings := h.shell.Settings()
	if len(cmd.Args) == 0 {
		h.Print(fmt.Sprintf("theme %s", settings.ToggleTheme()))
		return nil
	}
	if err := settings.SetTheme(cmd.Args[0]); err != nil {
		return err
	}
	h.Print(fmt.Sprintf("theme %s", settings.Preferences().Theme))
	return nil
}
