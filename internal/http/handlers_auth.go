package http

import (
	"net/http"

	"fixedspend/internal/session"
)

// handleLogin renders the login screen, or sends signed-in visitors home.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.gate.Current(r); ok {
		http.Redirect(w, r, session.HomePath, http.StatusSeeOther)
		return
	}

	data := loginView{ProviderLabel: providerLabel(s.provider)}
	if r.URL.Query().Get("error") != "" {
		data.Error = msgLoginFailed
	}
	s.render(w, r, http.StatusOK, "login_page", data)
}
