package browser

// playingScript reports whether the page's first video is playing.
const playingScript = `() => {
	const v = document.querySelector('video');
	return !!v && !v.paused && !v.ended && v.readyState > 2;
}`

// faviconScript returns the page's declared icon URL, or "".
const faviconScript = `() => {
	const l = document.querySelector("link[rel~='icon']");
	return l ? l.href : "";
}`

// visibilityScript returns document.visibilityState.
const visibilityScript = `() => document.visibilityState`

// visibilityBinding is exposed on every context; the init script calls it
// whenever the page's visibility changes.
const visibilityBinding = "__declutterVisibility"

const visibilityInitScript = `(() => {
	const report = () => {
		if (typeof window.` + visibilityBinding + ` === 'function') {
			window.` + visibilityBinding + `(document.visibilityState);
		}
	};
	document.addEventListener('visibilitychange', report);
	report();
})();`

// isPlayingResult interprets a probe result: true or {playing: true} means
// playing, anything else does not.
func isPlayingResult(v any) bool {
	switch r := v.(type) {
	case bool:
		return r
	case map[string]any:
		playing, _ := r["playing"].(bool)
		return playing
	default:
		return false
	}
}

// isVisible interprets a visibility report.
func isVisible(v any) bool {
	s, _ := v.(string)
	return s == "visible"
}

// stringResult returns v when it is a string, else "".
func stringResult(v any) string {
	s, _ := v.(string)
	return s
}
