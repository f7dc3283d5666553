/*
Package api
File: protocol.go
Description:
    The request/response protocol shared by the WebSocket hub and the REST
    endpoints. One request in, exactly one Message out.

    Request kinds:
    - reset:   {"reset": true}                  -> fresh plant, type "state"
    - tick:    {"delta_t": .., "growth_percentages": {..}} -> type "state"
    - query:   {} or {"type": "growth"}         -> last rates, time not advanced
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/everforgeworks/plantsim/internal/game"
	"github.com/everforgeworks/plantsim/internal/session"
)

// Message types.
const (
	TypeState       = "state"
	TypeGrowth      = "growth"
	TypeError       = "error"
	TypeLeaderboard = "leaderboard"
)

// SenderSystem marks messages not tied to one session.
const SenderSystem = "system"

// ErrTransportFailure reports a connection that can no longer carry responses.
var ErrTransportFailure = errors.New("transport failure")

// Message defines the standard JSON envelope for all communication.
type Message struct {
	Type    string `json:"type"`    // state, growth, error, leaderboard
	Payload any    `json:"payload"` // Snapshot, ErrorPayload or leaderboard entries
	Sender  string `json:"sender"`  // Session id, or "system"
}

// TickRequest is what a client sends for one step.
type TickRequest struct {
	Type              string               `json:"type,omitempty"`
	DeltaT            float64              `json:"delta_t"`
	GrowthPercentages *game.AllocationPlan `json:"growth_percentages,omitempty"`
	Reset             bool                 `json:"reset,omitempty"`
}

// ErrorPayload is the payload of an error Message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeRequest parses a raw request. Anything that is not valid JSON of the
// right shape is a malformed allocation.
func DecodeRequest(data []byte) (TickRequest, error) {
	var req TickRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return TickRequest{}, fmt.Errorf("%w: %v", game.ErrMalformedAllocation, err)
	}
	return req, nil
}

// Handle runs one decoded request against a session and builds the reply.
func Handle(ctx context.Context, s *session.Session, req TickRequest) Message {
	var (
		snap session.Snapshot
		err  error
		kind = TypeState
	)
	switch {
	case req.Reset:
		snap, err = s.Reset(ctx)
	case req.Type == TypeGrowth || req.GrowthPercentages == nil:
		kind = TypeGrowth
		snap, err = s.Query()
	default:
		snap, err = s.Step(ctx, *req.GrowthPercentages, req.DeltaT)
	}
	if err != nil {
		return ErrorMessage(s.ID(), err)
	}
	return Message{Type: kind, Payload: snap, Sender: s.ID()}
}

// HandleRaw decodes and handles a raw request in one go.
func HandleRaw(ctx context.Context, s *session.Session, data []byte) Message {
	req, err := DecodeRequest(data)
	if err != nil {
		return ErrorMessage(s.ID(), err)
	}
	return Handle(ctx, s, req)
}

// ErrorMessage wraps err in the error envelope.
func ErrorMessage(sender string, err error) Message {
	return Message{
		Type:    TypeError,
		Payload: ErrorPayload{Code: ErrorCode(err), Message: err.Error()},
		Sender:  sender,
	}
}

// ErrorCode maps an error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrInvalidTick):
		return "invalid_tick"
	case errors.Is(err, game.ErrMalformedAllocation):
		return "malformed_allocation"
	case errors.Is(err, session.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, session.ErrNotFound):
		return "not_found"
	case errors.Is(err, session.ErrUnknownLevel):
		return "unknown_level"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "internal"
}

// StatusCode maps an error to the HTTP status used by the REST endpoints.
func StatusCode(err error) int {
	return statusForCode(ErrorCode(err))
}

func statusForCode(code string) int {
	switch code {
	case "invalid_tick":
		return http.StatusUnprocessableEntity
	case "malformed_allocation":
		return http.StatusBadRequest
	case "session_closed":
		return http.StatusGone
	case "not_found", "unknown_level":
		return http.StatusNotFound
	case "timeout":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
