// Package http exposes the follower's inbound Submit operation over
// HTTP, grounded on raft-server/http_handler.go and raft-server/client.go.
// RPC framing itself is out of scope of the follower core (spec.md §1);
// this package is the boundary collaborator that decodes wire requests
// into follower.AppendEntriesRequest and waits on the Completion.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/joyqueue/journalkeeper/follower"
)

// Handler wires a *follower.Follower to the HTTP transport.
type Handler struct {
	f *follower.Follower
	// WaitTimeout bounds how long a request waits on its Completion
	// before the HTTP handler gives up and returns 504. It does not
	// cancel the underlying request — the handler loop still responds
	// to it eventually; the client is just no longer waiting.
	WaitTimeout time.Duration
}

func NewHandler(f *follower.Follower) *Handler {
	return &Handler{f: f, WaitTimeout: 5 * time.Second}
}

func (h *Handler) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/append-entries", h.handleAppendEntries)
}

// Response is the wire shape of an AppendEntriesResponse.
type Response struct {
	Success      bool   `json:"success"`
	JournalIndex int64  `json:"journalIndex"`
	Term         int    `json:"term"`
	EntryCount   int    `json:"entryCount"`
	Err          string `json:"err,omitempty"`
}

func (h *Handler) handleAppendEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req follower.AppendEntriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	completion := h.f.Submit(req)

	ctx, cancel := context.WithTimeout(r.Context(), h.WaitTimeout)
	defer cancel()

	resp, err := completion.Wait(ctx)
	if err != nil {
		http.Error(w, "timed out waiting for follower response", http.StatusGatewayTimeout)
		return
	}

	out := Response{
		Success:      resp.Success,
		JournalIndex: resp.JournalIndex,
		Term:         resp.Term,
		EntryCount:   resp.EntryCount,
	}
	if resp.Err != nil {
		out.Err = resp.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
