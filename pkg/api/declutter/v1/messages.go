package declutterv1

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Tab event kinds carried by TabEventRequest.
const (
	TabActivated = "activated"
	TabUpdated   = "updated"
	TabRemoved   = "removed"
)

// TabEventRequest reports one browser tab event. TabID may be a JSON string
// or number.
type TabEventRequest struct {
	Kind   string `json:"kind"`
	TabID  any    `json:"tabId"`
	Status string `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
}

// WatchRequest selects engine event kinds. Empty means all.
type WatchRequest struct {
	Kinds []string `json:"kinds,omitempty"`
}

// DaemonStatus is the payload of GetDaemonStatus.
type DaemonStatus struct {
	Running          bool      `json:"running"`
	PID              int       `json:"pid"`
	UptimeSeconds    int64     `json:"uptimeSeconds"`
	MemoryBytes      int64     `json:"memoryBytes"`
	BrowserConnected bool      `json:"browserConnected"`
	TrackedTabs      int       `json:"trackedTabs"`
	ImportantTabs    int       `json:"importantTabs"`
	QueuedCandidates int       `json:"queuedCandidates"`
	LastSweep        time.Time `json:"lastSweep"`
	NextSweep        time.Time `json:"nextSweep"`
	SweepPeriod      string    `json:"sweepPeriod"`
	Subscribers      int       `json:"subscribers"`
}

// ToStruct converts any JSON-encodable value to a Struct. v must encode as
// a JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("converting message: %w", err)
	}
	return out, nil
}

// FromStruct decodes s into v through its JSON form.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("converting message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return nil
}
