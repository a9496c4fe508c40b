package browser

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

type fakePage struct {
	url string
}

func newTestRegistry(now *time.Time) *registry[*fakePage] {
	r := newRegistry[*fakePage]()
	n := 0
	r.newID = func() types.TabID {
		n++
		return types.TabID("t" + strconv.Itoa(n))
	}
	r.now = func() time.Time { return *now }
	return r
}

func TestRegistry_AddIsIdempotent(t *testing.T) {
	now := time.UnixMilli(1_000)
	r := newTestRegistry(&now)
	a, b := &fakePage{url: "a"}, &fakePage{url: "b"}

	idA := r.Add(a, "0")
	idB := r.Add(b, "0")
	assert.Equal(t, types.TabID("t1"), idA)
	assert.Equal(t, types.TabID("t2"), idB)
	assert.Equal(t, idA, r.Add(a, "0"))
	assert.Equal(t, 2, r.Len())

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, idA, entries[0].ID)
	assert.Equal(t, int64(1_000), entries[0].LastAccessed)
}

func TestRegistry_RemoveKeepsOrder(t *testing.T) {
	now := time.UnixMilli(0)
	r := newTestRegistry(&now)
	a, b, c := &fakePage{}, &fakePage{}, &fakePage{}
	r.Add(a, "0")
	idB := r.Add(b, "0")
	r.Add(c, "1")

	id, ok := r.Remove(b)
	require.True(t, ok)
	assert.Equal(t, idB, id)

	_, ok = r.Remove(b)
	assert.False(t, ok)

	_, ok = r.Page(idB)
	assert.False(t, ok)

	var pages []*fakePage
	for _, e := range r.Entries() {
		pages = append(pages, e.Page)
	}
	assert.Equal(t, []*fakePage{a, c}, pages)
}

func TestRegistry_VisibilityStampsAccess(t *testing.T) {
	now := time.UnixMilli(1_000)
	r := newTestRegistry(&now)
	p := &fakePage{}
	id := r.Add(p, "0")

	now = time.UnixMilli(5_000)
	got, ok := r.SetVisible(p, true)
	require.True(t, ok)
	assert.Equal(t, id, got)

	now = time.UnixMilli(9_000)
	_, ok = r.SetVisible(p, false)
	require.True(t, ok)

	e := r.Entries()[0]
	assert.False(t, e.Visible)
	assert.Equal(t, int64(5_000), e.LastAccessed)

	_, ok = r.SetVisible(&fakePage{}, true)
	assert.False(t, ok)
}

func TestRegistry_FindAndFavicon(t *testing.T) {
	now := time.Now()
	r := newTestRegistry(&now)
	r.Add(&fakePage{url: "https://example.com"}, "0")
	review := &fakePage{url: "http://127.0.0.1:7717/review"}
	r.Add(review, "0")
	r.SetFavicon(review, "http://127.0.0.1:7717/icon.png")

	found, ok := r.Find(func(p *fakePage) bool { return p.url == "http://127.0.0.1:7717/review" })
	require.True(t, ok)
	assert.Same(t, review, found)
	assert.Equal(t, "http://127.0.0.1:7717/icon.png", r.Entries()[1].FavIconURL)

	_, ok = r.Find(func(p *fakePage) bool { return p.url == "nope" })
	assert.False(t, ok)
}

func TestIsPlayingResult(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"true", true, true},
		{"false", false, false},
		{"object playing", map[string]any{"playing": true}, true},
		{"object paused", map[string]any{"playing": false}, false},
		{"object wrong type", map[string]any{"playing": "yes"}, false},
		{"nil", nil, false},
		{"string", "true", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPlayingResult(tt.in))
		})
	}
}

func TestIsVisible(t *testing.T) {
	assert.True(t, isVisible("visible"))
	assert.False(t, isVisible("hidden"))
	assert.False(t, isVisible(nil))
}

func TestDetached(t *testing.T) {
	var d Detached
	ctx := context.Background()

	tabs, err := d.Tabs(ctx)
	require.NoError(t, err)
	assert.Empty(t, tabs)
	require.NoError(t, d.Close(ctx, []types.TabID{"1"}))
	playing, err := d.IsPlaying(ctx, types.Tab{ID: "1"})
	require.NoError(t, err)
	assert.False(t, playing)
	require.NoError(t, d.OpenReview(ctx, true))
	assert.False(t, d.Connected())
}
