package core

import (
	"context"
	"strings"

	"pkt.systems/netbrowser/internal/logx"
	"pkt.systems/netbrowser/schema"
)

// NavigateOptions controls SmartNavigate.
type NavigateOptions struct {
	// Singleton focuses an open session showing the same page instead of
	// navigating.
	Singleton bool
}

// Resolve turns address-bar input into a URL with the configured search
// engine.
func (s *Shell) Resolve(input string) (string, error) {
	return Resolve(input, s.settings.Preferences().SearchEngine)
}

// SmartNavigate opens url following browser conventions: with Singleton a
// matching open session is focused; otherwise a blank active session is
// reused and anything else opens a new session.
func (s *Shell) SmartNavigate(ctx context.Context, url, title string, opts NavigateOptions) (schema.SessionID, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", schema.ErrEmptyInput
	}
	log := logx.WithURL(s.log, url)
	if opts.Singleton {
		target := schema.NormalizeSessionURL(url)
		for _, sess := range s.registry.List() {
			if schema.NormalizeSessionURL(sess.URL) == target {
				s.registry.SetActive(sess.ID)
				log.Debug("shell navigate focused existing", "session", sess.ID)
				return sess.ID, nil
			}
		}
	}
	if active, ok := s.registry.Active(); ok && schema.IsBlankURL(active.URL) {
		log.Debug("shell navigate in place", "session", active.ID)
		return active.ID, s.navigateSession(ctx, active.ID, url, title)
	}
	id := s.openSession(ctx, url, title, false)
	log.Debug("shell navigate new session", "session", id)
	return id, nil
}

// Open resolves input and smart-navigates to it.
func (s *Shell) Open(ctx context.Context, input string) (schema.SessionID, error) {
	target, err := s.Resolve(input)
	if err != nil {
		return "", err
	}
	return s.SmartNavigate(ctx, target, "", NavigateOptions{})
}

// OpenPage focuses or opens a built-in page.
func (s *Shell) OpenPage(ctx context.Context, url string) (schema.SessionID, error) {
	return s.SmartNavigate(ctx, url, "", NavigateOptions{Singleton: true})
}

// Navigate resolves input and loads it in the active session.
func (s *Shell) Navigate(ctx context.Context, input string) error {
	target, err := s.Resolve(input)
	if err != nil {
		return err
	}
	active, ok := s.registry.Active()
	if !ok {
		s.openSession(ctx, target, "", false)
		return nil
	}
	return s.navigateSession(ctx, active.ID, target, "")
}

// NewSession opens the configured homepage, or a new-tab page when the
// homepage is the new-tab page.
func (s *Shell) NewSession(ctx context.Context) (schema.SessionID, error) {
	home := s.settings.Preferences().Homepage
	if schema.IsBlankURL(home) {
		return s.openSession(ctx, schema.NewTabURL, "", false), nil
	}
	return s.SmartNavigate(ctx, home, "", NavigateOptions{})
}

// Back navigates the active session back.
func (s *Shell) Back(ctx context.Context) error {
	return s.withActiveView(ctx, func(coord *Coordinator) error { return coord.View().Back(ctx) })
}

// Forward navigates the active session forward.
func (s *Shell) Forward(ctx context.Context) error {
	return s.withActiveView(ctx, func(coord *Coordinator) error { return coord.View().Forward(ctx) })
}

// Reload reloads the active session.
func (s *Shell) Reload(ctx context.Context) error {
	return s.withActiveView(ctx, func(coord *Coordinator) error { return coord.View().Reload(ctx) })
}

// Retry clears the active session's error view and reloads it.
func (s *Shell) Retry(ctx context.Context) error {
	return s.withActiveView(ctx, func(coord *Coordinator) error { return coord.Retry(ctx) })
}

// Find starts a find-in-page search in the active session.
func (s *Shell) Find(ctx context.Context, text string) error {
	return s.withActiveView(ctx, func(coord *Coordinator) error { return coord.Find(ctx, text) })
}

// FindNext moves between matches in the active session.
func (s *Shell) FindNext(ctx context.Context, forward bool) error {
	return s.withActiveView(ctx, func(coord *Coordinator) error { return coord.FindNext(ctx, forward) })
}

// CloseFind closes the find overlay in the active session.
func (s *Shell) CloseFind(ctx context.Context) error {
	return s.withActiveView(ctx, func(coord *Coordinator) error { return coord.CloseFind(ctx) })
}

// withActiveView runs fn against the active session's view. Built-in pages
// have nothing to act on and are skipped.
func (s *Shell) withActiveView(ctx context.Context, fn func(*Coordinator) error) error {
	active, ok := s.registry.Active()
	if !ok {
		return schema.ErrSessionNotFound
	}
	if schema.ParseDestination(active.URL).Internal() {
		return nil
	}
	coord := s.coordinator(active.ID)
	if coord == nil {
		return schema.ErrNoContentView
	}
	if err := fn(coord); err != nil {
		logx.WithSession(ctx, active.ID).Warn("shell view command failed", "err", err)
		return err
	}
	return nil
}

func (s *Shell) navigateSession(ctx context.Context, id schema.SessionID, url, title string) error {
	dest := schema.ParseDestination(url)
	if coord := s.coordinator(id); coord != nil {
		coord.ResetPage()
	}
	if dest.Internal() {
		s.registry.Update(id, schema.SessionPatch{URL: dest.URL, Title: dest.Title(), Loading: schema.Bool(false)})
		return nil
	}
	if title == "" {
		title = url
	}
	s.registry.Update(id, schema.SessionPatch{URL: url, Title: title})
	return s.load(ctx, id, url)
}

func (s *Shell) load(ctx context.Context, id schema.SessionID, url string) error {
	log := logx.WithURL(logx.WithSession(ctx, id), url)
	coord := s.coordinator(id)
	if coord == nil {
		log.Warn("shell load skipped", "err", schema.ErrNoContentView)
		return schema.ErrNoContentView
	}
	s.registry.Update(id, schema.SessionPatch{Loading: schema.Bool(true)})
	if err := coord.View().Load(ctx, url); err != nil {
		s.registry.Update(id, schema.SessionPatch{Loading: schema.Bool(false)})
		log.Warn("shell load failed", "err", err)
		return err
	}
	log.Debug("shell load started")
	return nil
}
