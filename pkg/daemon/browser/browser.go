// Package browser attaches to a running Chromium over the DevTools protocol
// and serves as the declutter tab directory, media probe and review surface.
//
// Every open page gets a stable tab id for as long as it lives. Page loads,
// navigations, visibility changes and closes are reported to a Listener in
// the order the browser emitted them.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/jamesainslie/declutter/pkg/declutter/engine"
	"github.com/jamesainslie/declutter/pkg/declutter/logging"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// ErrTabNotFound is returned for ids that do not name an open page.
var ErrTabNotFound = errors.New("tab not found")

// eventBuffer bounds the queue between playwright callbacks and the
// listener.
const eventBuffer = 256

// Listener receives tab events.
type Listener interface {
	OnTabActivated(id types.TabID) error
	OnTabUpdated(id types.TabID, change engine.TabChange) error
	OnTabRemoved(id types.TabID) error
}

// Options configures Connect.
type Options struct {
	// CDPURL is the DevTools endpoint, e.g. http://127.0.0.1:9222.
	CDPURL string

	// ReviewURL is the page OpenReview shows.
	ReviewURL string
}

type eventKind int

const (
	evAttached eventKind = iota
	evLoaded
	evNavigated
	evVisibility
	evClosed
)

type pageEvent struct {
	kind    eventKind
	page    playwright.Page
	url     string
	visible bool
}

// Browser is a CDP-attached Chromium.
type Browser struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
	pages   *registry[playwright.Page]
	logger  *logging.Logger

	events chan pageEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu       sync.RWMutex
	listener Listener
	closed   bool
}

// Connect starts the playwright driver and attaches to the browser at
// opts.CDPURL. Browsers are never downloaded.
func Connect(opts Options) (*Browser, error) {
	if opts.CDPURL == "" {
		return nil, errors.New("browser: CDP URL is required")
	}

	runOpts := &playwright.RunOptions{
		SkipInstallBrowsers: true,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("installing playwright driver: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	br, err := pw.Chromium.ConnectOverCDP(opts.CDPURL)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("connecting to %s: %w", opts.CDPURL, err)
	}

	b := &Browser{
		opts:    opts,
		pw:      pw,
		browser: br,
		pages:   newRegistry[playwright.Page](),
		logger:  logging.Get("browser"),
		events:  make(chan pageEvent, eventBuffer),
		done:    make(chan struct{}),
	}

	b.wg.Add(1)
	go b.run()

	br.OnDisconnected(func(playwright.Browser) {
		b.logger.Warn("browser disconnected", "cdp", opts.CDPURL)
	})
	for i, bc := range br.Contexts() {
		if err := b.attachContext(bc, strconv.Itoa(i)); err != nil {
			_ = b.Disconnect()
			return nil, err
		}
	}

	b.logger.Info("attached to browser", "cdp", opts.CDPURL, "tabs", b.pages.Len())
	return b, nil
}

// SetListener sets the receiver of tab events. Events that arrive before
// a listener is set are dropped.
func (b *Browser) SetListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = l
}

// Connected reports whether the browser connection is alive.
func (b *Browser) Connected() bool {
	return b.browser != nil && b.browser.IsConnected()
}

// Disconnect detaches from the browser and stops the driver. The browser
// itself keeps running.
func (b *Browser) Disconnect() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()

	var errs []error
	if err := b.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing browser connection: %w", err))
	}
	if err := b.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping playwright: %w", err))
	}
	return errors.Join(errs...)
}

// Tabs returns every open page in the order it was first seen.
func (b *Browser) Tabs(_ context.Context) ([]types.Tab, error) {
	if !b.Connected() {
		return nil, errors.New("browser is not connected")
	}

	entries := b.pages.Entries()
	tabs := make([]types.Tab, 0, len(entries))
	for _, e := range entries {
		if e.Page.IsClosed() {
			continue
		}
		title, err := e.Page.Title()
		if err != nil {
			b.logger.Debug("reading title failed", "tab", e.ID, "error", err)
		}
		tabs = append(tabs, types.Tab{
			ID:           e.ID,
			WindowID:     e.Window,
			Title:        title,
			URL:          e.Page.URL(),
			FavIconURL:   e.FavIconURL,
			Active:       e.Visible,
			LastAccessed: e.LastAccessed,
		})
	}
	return tabs, nil
}

// Close closes the given tabs. Unknown or already closed ids are skipped.
func (b *Browser) Close(_ context.Context, ids []types.TabID) error {
	var errs []error
	for _, id := range ids {
		page, ok := b.pages.Page(id)
		if !ok || page.IsClosed() {
			continue
		}
		if err := page.Close(); err != nil && !page.IsClosed() {
			errs = append(errs, fmt.Errorf("closing tab %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// IsPlaying evaluates the video probe in the tab. It gives up when ctx is
// done.
func (b *Browser) IsPlaying(ctx context.Context, tab types.Tab) (bool, error) {
	page, ok := b.pages.Page(tab.ID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrTabNotFound, tab.ID)
	}

	type result struct {
		v   any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := page.Evaluate(playingScript)
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return false, r.err
		}
		return isPlayingResult(r.v), nil
	}
}

// OpenReview shows the review page. An open review page is reused and only
// brought to the front when focus is true.
func (b *Browser) OpenReview(_ context.Context, focus bool) error {
	if page, ok := b.pages.Find(func(p playwright.Page) bool {
		return !p.IsClosed() && p.URL() == b.opts.ReviewURL
	}); ok {
		if !focus {
			return nil
		}
		if err := page.BringToFront(); err != nil {
			return fmt.Errorf("focusing review page: %w", err)
		}
		return nil
	}

	contexts := b.browser.Contexts()
	if len(contexts) == 0 {
		return errors.New("browser has no context to open the review page in")
	}
	page, err := contexts[0].NewPage()
	if err != nil {
		return fmt.Errorf("opening review page: %w", err)
	}
	b.pages.Add(page, "0")
	if _, err := page.Goto(b.opts.ReviewURL); err != nil {
		return fmt.Errorf("loading review page: %w", err)
	}
	if focus {
		if err := page.BringToFront(); err != nil {
			return fmt.Errorf("focusing review page: %w", err)
		}
	}
	return nil
}

func (b *Browser) attachContext(bc playwright.BrowserContext, window string) error {
	err := bc.ExposeBinding(visibilityBinding, func(source *playwright.BindingSource, args ...any) any {
		if source == nil || source.Page == nil || len(args) == 0 {
			return nil
		}
		b.enqueue(pageEvent{kind: evVisibility, page: source.Page, visible: isVisible(args[0])})
		return nil
	})
	if err != nil {
		return fmt.Errorf("exposing visibility binding: %w", err)
	}

	script := visibilityInitScript
	if err := bc.AddInitScript(playwright.Script{Content: &script}); err != nil {
		return fmt.Errorf("adding visibility script: %w", err)
	}

	bc.OnPage(func(p playwright.Page) {
		b.attachPage(p, window)
	})
	for _, p := range bc.Pages() {
		b.attachPage(p, window)
	}
	return nil
}

// attachPage runs on playwright's dispatch goroutine, so it only registers
// handlers and queues work.
func (b *Browser) attachPage(p playwright.Page, window string) {
	b.pages.Add(p, window)

	p.OnClose(func(p playwright.Page) {
		b.enqueue(pageEvent{kind: evClosed, page: p})
	})
	p.OnLoad(func(p playwright.Page) {
		b.enqueue(pageEvent{kind: evLoaded, page: p})
	})
	p.OnFrameNavigated(func(f playwright.Frame) {
		if f.ParentFrame() != nil {
			return
		}
		b.enqueue(pageEvent{kind: evNavigated, page: p, url: f.URL()})
	})
	b.enqueue(pageEvent{kind: evAttached, page: p})
}

func (b *Browser) enqueue(ev pageEvent) {
	select {
	case b.events <- ev:
	case <-b.done:
	default:
		b.logger.Warn("dropping tab event, queue full", "url", ev.page.URL())
	}
}

func (b *Browser) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.events:
			b.handle(ev)
		}
	}
}

func (b *Browser) handle(ev pageEvent) {
	var (
		id  types.TabID
		ok  bool
		err error
	)
	l := b.currentListener()

	switch ev.kind {
	case evAttached:
		v, evalErr := ev.page.Evaluate(visibilityScript)
		if evalErr != nil {
			return
		}
		if id, ok = b.pages.SetVisible(ev.page, isVisible(v)); ok && isVisible(v) && l != nil {
			err = l.OnTabActivated(id)
		}

	case evLoaded:
		if v, evalErr := ev.page.Evaluate(faviconScript); evalErr == nil {
			b.pages.SetFavicon(ev.page, stringResult(v))
		}
		if id, ok = b.pages.Lookup(ev.page); ok && l != nil {
			err = l.OnTabUpdated(id, engine.TabChange{Status: engine.StatusComplete, URL: ev.page.URL()})
		}

	case evNavigated:
		if id, ok = b.pages.Lookup(ev.page); ok && l != nil {
			err = l.OnTabUpdated(id, engine.TabChange{URL: ev.url})
		}

	case evVisibility:
		if id, ok = b.pages.SetVisible(ev.page, ev.visible); ok && ev.visible && l != nil {
			err = l.OnTabActivated(id)
		}

	case evClosed:
		if id, ok = b.pages.Remove(ev.page); ok && l != nil {
			err = l.OnTabRemoved(id)
		}
	}

	if err != nil {
		b.logger.Warn("tab event failed", "tab", id, "error", err)
	}
}

func (b *Browser) currentListener() Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.listener
}
