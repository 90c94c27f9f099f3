package core

import (
	"context"

	"pkt.systems/netbrowser/schema"
)

// Find starts a new search. Empty text clears the engine selection and
// resets the match counts but keeps the overlay open.
func (c *Coordinator) Find(ctx context.Context, text string) error {
	c.mu.Lock()
	c.page.Find = schema.FindState{Open: true, Query: text}
	c.mu.Unlock()
	c.emitPage()
	if text == "" {
		return c.view.ClearFind(ctx)
	}
	return c.view.Find(ctx, text, FindOptions{})
}

// FindNext moves to the next or previous match of the current query.
func (c *Coordinator) FindNext(ctx context.Context, forward bool) error {
	c.mu.Lock()
	find := c.page.Find
	c.mu.Unlock()
	if !find.Open || find.Query == "" {
		return nil
	}
	return c.view.Find(ctx, find.Query, FindOptions{FindNext: true, Forward: forward})
}

// CloseFind closes the overlay and clears the engine selection.
func (c *Coordinator) CloseFind(ctx context.Context) error {
	c.mu.Lock()
	wasOpen := c.page.Find.Open
	c.page.Find = schema.FindState{}
	c.mu.Unlock()
	if wasOpen {
		c.emitPage()
	}
	return c.view.ClearFind(ctx)
}

func (c *Coordinator) onFindResult(ev schema.ViewEvent) {
	c.mu.Lock()
	if !c.page.Find.Open || c.page.Find.Query == "" {
		c.mu.Unlock()
		return
	}
	c.page.Find.ActiveMatchOrdinal = ev.ActiveMatchOrdinal
	c.page.Find.TotalMatches = ev.TotalMatches
	c.mu.Unlock()
	c.emitPage()
}
