package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jamesainslie/declutter/pkg/declutter/settings"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// Command types understood by Handle.
const (
	CmdGetStateForTab        = "GET_STATE_FOR_TAB"
	CmdToggleImportant       = "TOGGLE_IMPORTANT"
	CmdUpdateSettings        = "UPDATE_SETTINGS"
	CmdRunNow                = "RUN_NOW"
	CmdGetReviewCandidates   = "GET_REVIEW_CANDIDATES"
	CmdCloseReviewCandidates = "CLOSE_REVIEW_CANDIDATES"
	CmdClearReviewCandidates = "CLEAR_REVIEW_CANDIDATES"
)

// Commands lists every command type in catalogue order.
var Commands = []string{
	CmdGetStateForTab,
	CmdToggleImportant,
	CmdUpdateSettings,
	CmdRunNow,
	CmdGetReviewCandidates,
	CmdCloseReviewCandidates,
	CmdClearReviewCandidates,
}

// ErrUnknownCommand is the failure for an unrecognised command type.
var ErrUnknownCommand = errors.New("Unknown message")

// ErrMissingTabID is the failure for a tab command without a tab id.
var ErrMissingTabID = errors.New("tabId is required")

// Request is one command message.
type Request struct {
	Type  string
	TabID types.TabID
	Patch map[string]any
}

// DecodeRequest builds a Request from a decoded message object with keys
// "type", "tabId" and "patch". Numeric tab ids are normalised.
func DecodeRequest(msg map[string]any) Request {
	req := Request{}
	req.Type, _ = msg["type"].(string)
	req.TabID, _ = types.ParseTabID(msg["tabId"])
	req.Patch, _ = msg["patch"].(map[string]any)
	return req
}

// UnmarshalJSON decodes a message object, accepting string or number tab ids.
func (r *Request) UnmarshalJSON(data []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	*r = DecodeRequest(msg)
	return nil
}

// Response is the envelope returned by Handle. Fields are only present on
// the commands that produce them.
type Response struct {
	OK    bool
	Error string

	Settings    *settings.Settings
	IsImportant *bool
	Important   *bool
	Candidates  []types.Candidate // nil means absent, empty means none queued
	Closed      *int
}

// MarshalJSON encodes the envelope with only the fields that are set.
func (r Response) MarshalJSON() ([]byte, error) {
	m := map[string]any{"ok": r.OK}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if r.Settings != nil {
		m["settings"] = r.Settings
	}
	if r.IsImportant != nil {
		m["isImportant"] = *r.IsImportant
	}
	if r.Important != nil {
		m["important"] = *r.Important
	}
	if r.Candidates != nil {
		m["candidates"] = r.Candidates
	}
	if r.Closed != nil {
		m["closed"] = *r.Closed
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an envelope produced by MarshalJSON.
func (r *Response) UnmarshalJSON(data []byte) error {
	var wire struct {
		OK          bool               `json:"ok"`
		Error       string             `json:"error"`
		Settings    *settings.Settings `json:"settings"`
		IsImportant *bool              `json:"isImportant"`
		Important   *bool              `json:"important"`
		Candidates  *[]types.Candidate `json:"candidates"`
		Closed      *int               `json:"closed"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = Response{
		OK:          wire.OK,
		Error:       wire.Error,
		Settings:    wire.Settings,
		IsImportant: wire.IsImportant,
		Important:   wire.Important,
		Closed:      wire.Closed,
	}
	if wire.Candidates != nil {
		r.Candidates = *wire.Candidates
		if r.Candidates == nil {
			r.Candidates = []types.Candidate{}
		}
	}
	return nil
}

// Err returns the failure as an error, or nil for a successful response.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == ErrUnknownCommand.Error() {
		return ErrUnknownCommand
	}
	return errors.New(r.Error)
}

func fail(err error) Response {
	return Response{OK: false, Error: err.Error()}
}

// Handle routes req to its command. It never panics on bad input and always
// returns an envelope; failures are reported with OK false.
func (e *Engine) Handle(ctx context.Context, req Request) Response {
	resp := e.dispatch(ctx, req)
	if !resp.OK {
		e.logger.Warn("command failed", "type", req.Type, "error", resp.Error)
	} else {
		e.logger.Debug("command handled", "type", req.Type)
	}
	return resp
}

func (e *Engine) dispatch(ctx context.Context, req Request) Response {
	switch req.Type {
	case CmdGetStateForTab:
		cfg, err := e.settings.Get()
		if err != nil {
			return fail(err)
		}
		important := false
		if req.TabID != "" {
			if important, err = e.tracker.IsImportant(req.TabID); err != nil {
				return fail(err)
			}
		}
		return Response{OK: true, Settings: &cfg, IsImportant: &important}

	case CmdToggleImportant:
		if req.TabID == "" {
			return fail(ErrMissingTabID)
		}
		important, err := e.ToggleImportant(req.TabID)
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Important: &important}

	case CmdUpdateSettings:
		patch := req.Patch
		if patch == nil {
			patch = map[string]any{}
		}
		cfg, err := e.UpdateSettings(patch)
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Settings: &cfg}

	case CmdRunNow:
		if err := e.RunNow(ctx); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	case CmdGetReviewCandidates:
		candidates, err := e.queue.Load()
		if err != nil {
			return fail(err)
		}
		cfg, err := e.settings.Get()
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Candidates: candidates, Settings: &cfg}

	case CmdCloseReviewCandidates:
		closed, err := e.CloseReview(ctx)
		if err != nil {
			return fail(err)
		}
		return Response{OK: true, Closed: &closed}

	case CmdClearReviewCandidates:
		if err := e.ClearReview(); err != nil {
			return fail(err)
		}
		return Response{OK: true}

	default:
		return fail(ErrUnknownCommand)
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}
