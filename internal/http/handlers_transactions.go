package http

import (
	"net/http"

	"fintrack/internal/core"
)

// authenticate resolves the session or writes 401. Callers return when ok is false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (core.UserID, bool) {
	user, ok := s.sessions.CurrentUser(r)
	if !ok {
		writeError(w, r, core.ErrAuthenticationRequired)
		return "", false
	}
	return user, true
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	txs, err := s.svc.List(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newTransactionList(txs))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	fields, err := ParseTransactionFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Create(r.Context(), user, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/transactions/"+t.ID)
	writeJSON(w, r, http.StatusCreated, newTransactionResponse(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	patch, err := ParseTransactionFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Update(r.Context(), user, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newTransactionResponse(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	sum, err := s.svc.Summary(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newSummaryResponse(sum))
}
