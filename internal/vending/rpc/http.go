package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chenzhangda16/web3-vending/internal/vending/machine"
	"github.com/chenzhangda16/web3-vending/internal/vending/model"
)

// CallerHeader carries the caller identity as 0x-prefixed hex.
const CallerHeader = "X-Caller"

// maxHistory caps one /history response.
const maxHistory = 1000

// Vendor is the surface served over HTTP; *host.Host implements it.
type Vendor interface {
	Vend(ctx context.Context, caller model.Identity) (machine.Receipt, error)
	Preview(caller model.Identity) error
	RemainingStock() (uint64, error)
	CooldownRemaining(caller model.Identity) (uint64, error)
	History(count uint64) ([]model.Record, error)
	BalanceOf(caller model.Identity) (uint64, error)
	Stats() (machine.Stats, error)
}

type Server struct {
	v Vendor
}

func NewServer(v Vendor) *Server { return &Server{v: v} }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Post("/vend", s.handleVend)
	r.Get("/preview/{id}", s.handlePreview)
	r.Get("/stock", s.handleStock)
	r.Get("/cooldown/{id}", s.handleCooldown)
	r.Get("/history", s.handleHistory)
	r.Get("/balance/{id}", s.handleBalance)
	r.Get("/stats", s.handleStats)

	return r
}

// -------------------- helpers --------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
}

// writeError maps the vending error set onto status codes.
func writeError(w http.ResponseWriter, err error) {
	var ce *machine.CooldownActiveError
	switch {
	case errors.As(err, &ce):
		w.Header().Set("Retry-After", strconv.FormatUint(ce.Remaining, 10))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":     "cooldown_active",
			"remaining": ce.Remaining,
		})
	case errors.Is(err, machine.ErrOutOfStock):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "out_of_stock"})
	default:
		log.Printf("[rpc] internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal"})
	}
}

func pathIdentity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	id, err := model.ParseIdentity(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "bad identity: "+err.Error())
		return model.Identity{}, false
	}
	return id, true
}

// -------------------- handlers --------------------

func (s *Server) handleVend(w http.ResponseWriter, r *http.Request) {
	caller, err := model.ParseIdentity(r.Header.Get(CallerHeader))
	if err != nil {
		badRequest(w, "bad "+CallerHeader+": "+err.Error())
		return
	}
	rc, err := s.v.Vend(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r)
	if !ok {
		return
	}
	err := s.v.Preview(id)
	if err != nil && !machine.IsBusiness(err) {
		writeError(w, err)
		return
	}
	resp := map[string]any{"eligible": err == nil}
	if err != nil {
		resp["reason"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	n, err := s.v.RemainingStock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": n})
}

func (s *Server) handleCooldown(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r)
	if !ok {
		return
	}
	rem, err := s.v.CooldownRemaining(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"remaining": rem})
}

// /history?count=10 returns newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	count := uint64(maxHistory)
	if c := r.URL.Query().Get("count"); c != "" {
		n, err := strconv.ParseUint(c, 10, 64)
		if err != nil {
			badRequest(w, "bad count")
			return
		}
		count = min(n, maxHistory)
	}
	recs, err := s.v.History(count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r)
	if !ok {
		return
	}
	bal, err := s.v.BalanceOf(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": bal})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.v.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
