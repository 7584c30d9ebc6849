package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/grimoire/grimoire-go/internal/config"
	"github.com/grimoire/grimoire-go/internal/dice"
	"github.com/grimoire/grimoire-go/internal/drafts"
	"github.com/grimoire/grimoire-go/internal/engine"
	"github.com/grimoire/grimoire-go/internal/faults"
	"github.com/grimoire/grimoire-go/internal/llm"
	"github.com/grimoire/grimoire-go/internal/logger"
	"github.com/grimoire/grimoire-go/internal/memory"
	"github.com/grimoire/grimoire-go/internal/remote"
)

// registry hands out one controller per conversation, created on demand.
type registry struct {
	mu          sync.Mutex
	controllers map[string]*engine.Controller

	transport remote.Transport
	memory    memory.Store
	roller    dice.Roller
}

func (r *registry) get(conversationID string) *engine.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[conversationID]; ok {
		return c
	}
	anim := engine.AnimationFunc(func(roll dice.Roll) {
		logger.L.Info("dice animation", "conversation", conversationID, "result", dice.Format(roll))
	})
	c := engine.NewController(conversationID, r.transport, r.memory, r.roller, anim)
	r.controllers[conversationID] = c
	return c
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		return
	}
	logger.SetLevel(cfg.Log.Level)

	var transport remote.Transport
	if cfg.Remote.BaseURL != "" {
		transport = remote.NewHTTPTransport(cfg.Remote)
		logger.L.Info("using remote backend", "base_url", cfg.Remote.BaseURL)
	} else {
		transport = llm.NewTransport(llm.NewClient(cfg.LLM), cfg.LLM)
		logger.L.Info("using bundled LLM backend", "model", cfg.LLM.Model)
	}

	var store memory.Store = memory.NewLocalStore()
	if cfg.Memory.URL != "" {
		mcpStore, err := memory.NewMCPStore(cfg.Memory)
		if err != nil {
			logger.L.Warn("memory MCP server unavailable; using local memory", "error", err)
		} else {
			store = mcpStore
		}
	}

	draftStore := drafts.NewStore(cfg.Drafts.DBPath)
	reg := &registry{
		controllers: make(map[string]*engine.Controller),
		transport:   transport,
		memory:      store,
		roller:      dice.NewRoller(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		c := reg.get(r.PathValue("id"))
		if len(c.Messages()) == 0 {
			if err := c.Load(r.Context()); err != nil {
				writeFault(w, err)
				return
			}
		}
		writeJSON(w, map[string]any{
			"history": c.Messages(),
			"draft":   draftStore.Load(c.ConversationID()),
		})
	})

	mux.HandleFunc("POST /conversations/{id}/turn", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text  string        `json:"text"`
			Files []remote.File `json:"files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		c := reg.get(r.PathValue("id"))
		res, err := c.SubmitTurn(r.Context(), body.Text, body.Files)
		if err != nil {
			writeFault(w, err)
			return
		}
		draftStore.Clear(c.ConversationID())
		writeJSON(w, map[string]any{
			"dice_only":         res.DiceOnly,
			"history":           c.Messages(),
			"pending_deletions": res.PendingDeletions,
		})
	})

	mux.HandleFunc("POST /conversations/{id}/regenerate", func(w http.ResponseWriter, r *http.Request) {
		c := reg.get(r.PathValue("id"))
		if _, err := engine.NewCoordinator(c).Regenerate(r.Context()); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, map[string]any{"history": c.Messages()})
	})

	mux.HandleFunc("POST /conversations/{id}/branch", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FromMessageID string `json:"from_message_id"`
			Confirmed     bool   `json:"confirmed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		c := reg.get(r.PathValue("id"))
		newID, err := engine.NewCoordinator(c).Branch(r.Context(), body.FromMessageID, body.Confirmed)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, map[string]any{"new_conversation_id": newID})
	})

	mux.HandleFunc("POST /conversations/{id}/messages/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs       []string `json:"ids"`
			Confirmed bool     `json:"confirmed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		c := reg.get(r.PathValue("id"))
		report, err := engine.NewCoordinator(c).MassDelete(r.Context(), body.IDs, body.Confirmed)
		if err != nil && report == nil {
			writeFault(w, err)
			return
		}
		failed := make(map[string]string, len(report.Failed))
		for id, f := range report.Failed {
			failed[id] = f.Message
		}
		writeJSON(w, map[string]any{
			"deleted": report.Deleted,
			"failed":  failed,
			"history": c.Messages(),
		})
	})

	mux.HandleFunc("PATCH /conversations/{id}/messages/{messageID}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		c := reg.get(r.PathValue("id"))
		if err := c.EditMessage(r.Context(), r.PathValue("messageID"), body.Text); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, map[string]any{"history": c.Messages()})
	})

	mux.HandleFunc("POST /conversations/{id}/memories/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		c := reg.get(r.PathValue("id"))
		if err := engine.NewCoordinator(c).ConfirmMemoryDeletion(r.Context(), body.IDs); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, map[string]any{"deleted": body.IDs})
	})

	mux.HandleFunc("PUT /conversations/{id}/draft", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		draftStore.Save(r.PathValue("id"), body.Text)
		w.WriteHeader(http.StatusNoContent)
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}

// writeFault maps the engine's error taxonomy onto HTTP statuses so the UI
// can style moderation and rate-limit outcomes distinctly.
func writeFault(w http.ResponseWriter, err error) {
	f := faults.Classify(err)
	status := http.StatusBadGateway
	switch f.Kind {
	case faults.ValidationFailure:
		status = http.StatusBadRequest
	case faults.ModerationRejection:
		status = http.StatusUnprocessableEntity
	case faults.RateLimited:
		status = http.StatusTooManyRequests
	case faults.Unclassified:
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"kind":      string(f.Kind),
		"message":   f.Message,
		"retryable": f.Retryable(),
	}); err != nil {
		logger.L.Error("failed to encode fault", "error", err)
	}
}
