package http

import (
	"net/http"

	"fixedspend/internal/log"
	"fixedspend/internal/session"
)

// handleProfile renders the profile page. When the account cannot be loaded
// the visitor is sent to the login page; a rejected credential is signed out first.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	ctx, cancel := remoteContext(r.Context())
	defer cancel()

	p, err := s.profiles.Load(ctx, sess)
	if err != nil {
		log.FromContext(ctx, s.logger).WarnContext(ctx, "Failed to load profile",
			log.FieldOperation, log.OpRead,
			log.FieldUserID, sess.User.ID,
			log.FieldError, err)
		if session.IsNoSession(err) {
			s.gate.SignOut(w, r)
			return
		}
		http.Redirect(w, r, session.LoginPath, http.StatusSeeOther)
		return
	}

	s.render(w, r, http.StatusOK, "mypage_page", profileView{
		Chrome:     chrome{SignedIn: true, UserEmail: sess.User.Email},
		Email:      p.Email,
		Total:      p.Total,
		TotalKnown: p.TotalKnown,
	})
}
