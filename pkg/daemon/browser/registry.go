package browser

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// registry assigns stable tab ids to pages and keeps what the browser
// reported about them. P is playwright.Page in production.
type registry[P comparable] struct {
	mu     sync.RWMutex
	order  []types.TabID
	byID   map[types.TabID]*entry[P]
	byPage map[P]types.TabID
	newID  func() types.TabID
	now    func() time.Time
}

type entry[P comparable] struct {
	page    P
	window  string
	favicon string
	visible bool

	// lastAccessed is epoch millis of the last time the page became
	// visible, or of registration when it never did.
	lastAccessed int64
}

// pageInfo is a copy of an entry taken under the lock.
type pageInfo[P comparable] struct {
	ID           types.TabID
	Page         P
	Window       string
	FavIconURL   string
	Visible      bool
	LastAccessed int64
}

func newRegistry[P comparable]() *registry[P] {
	return &registry[P]{
		byID:   make(map[types.TabID]*entry[P]),
		byPage: make(map[P]types.TabID),
		newID:  func() types.TabID { return types.TabID(uuid.NewString()) },
		now:    time.Now,
	}
}

// Add registers page and returns its id. Adding a known page returns the
// id it already has.
func (r *registry[P]) Add(page P, window string) types.TabID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPage[page]; ok {
		return id
	}

	id := r.newID()
	r.byID[id] = &entry[P]{
		page:         page,
		window:       window,
		lastAccessed: r.now().UnixMilli(),
	}
	r.byPage[page] = id
	r.order = append(r.order, id)
	return id
}

// Lookup returns the id of page.
func (r *registry[P]) Lookup(page P) (types.TabID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPage[page]
	return id, ok
}

// Page returns the page registered under id.
func (r *registry[P]) Page(id types.TabID) (P, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		var zero P
		return zero, false
	}
	return e.page, true
}

// Remove forgets page and returns the id it had.
func (r *registry[P]) Remove(page P) (types.TabID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byPage[page]
	if !ok {
		return "", false
	}
	delete(r.byPage, page)
	delete(r.byID, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return id, true
}

// SetVisible records the page's visibility. Becoming visible counts as an
// access.
func (r *registry[P]) SetVisible(page P, visible bool) (types.TabID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byPage[page]
	if !ok {
		return "", false
	}
	e := r.byID[id]
	e.visible = visible
	if visible {
		e.lastAccessed = r.now().UnixMilli()
	}
	return id, true
}

// SetFavicon records the page's icon URL.
func (r *registry[P]) SetFavicon(page P, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPage[page]; ok {
		r.byID[id].favicon = url
	}
}

// Find returns the first page, in registration order, for which match is
// true.
func (r *registry[P]) Find(match func(P) bool) (P, bool) {
	for _, info := range r.Entries() {
		if match(info.Page) {
			return info.Page, true
		}
	}
	var zero P
	return zero, false
}

// Entries returns every registered page in registration order.
func (r *registry[P]) Entries() []pageInfo[P] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]pageInfo[P], 0, len(r.order))
	for _, id := range r.order {
		e := r.byID[id]
		out = append(out, pageInfo[P]{
			ID:           id,
			Page:         e.page,
			Window:       e.window,
			FavIconURL:   e.favicon,
			Visible:      e.visible,
			LastAccessed: e.lastAccessed,
		})
	}
	return out
}

// Len returns the number of registered pages.
func (r *registry[P]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
