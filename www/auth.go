package www

import (
	"log"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"arogyadash/store"
)

const sessionName = "arogyadash-session"

func newSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "arogyadash-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false // served behind the hospital LAN proxy
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *Handlers) isAuthenticated(r *http.Request) bool {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return false
	}
	auth, ok := session.Values["authenticated"].(bool)
	return ok && auth
}

func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isAuthenticated(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) getUsername(r *http.Request) string {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	username, _ := session.Values["username"].(string)
	return username
}

// ensureDefaultAdmin seeds admin/admin on an empty user table.
func ensureDefaultAdmin(db *store.DB) {
	if db == nil {
		return
	}
	exists, err := db.AdminUserExists()
	if err != nil || exists {
		return
	}
	hash, err := hashPassword("admin")
	if err != nil {
		return
	}
	if err := db.CreateAdminUser("admin", hash); err != nil {
		log.Printf("auth: create default admin: %v", err)
		return
	}
	log.Printf("auth: created default admin user (admin/admin), change the password")
}

func (h *Handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", map[string]any{
		"Page":          "login",
		"Authenticated": h.isAuthenticated(r),
	})
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	db := h.engine.DB()
	if db == nil {
		http.Error(w, "no user database configured", http.StatusServiceUnavailable)
		return
	}
	user, err := db.GetAdminUser(username)
	if err != nil || !checkPassword(user.PasswordHash, password) {
		w.WriteHeader(http.StatusUnauthorized)
		h.render(w, "login.html", map[string]any{
			"Page":  "login",
			"Error": "Invalid username or password",
		})
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = username
	if err := session.Save(r, w); err != nil {
		log.Printf("auth: session save error: %v", err)
	}

	http.Redirect(w, r, "/config", http.StatusSeeOther)
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	session.Values["username"] = ""
	session.Save(r, w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleChangePassword updates the logged-in admin's password.
func (h *Handlers) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	db := h.engine.DB()
	if db == nil {
		http.Error(w, "no user database configured", http.StatusServiceUnavailable)
		return
	}

	username := h.getUsername(r)
	user, err := db.GetAdminUser(username)
	if err != nil || !checkPassword(user.PasswordHash, r.FormValue("current_password")) {
		h.renderConfig(w, r, "Current password is incorrect")
		return
	}
	next := r.FormValue("new_password")
	if len(next) < 8 {
		h.renderConfig(w, r, "New password must be at least 8 characters")
		return
	}
	if next != r.FormValue("confirm_password") {
		h.renderConfig(w, r, "Passwords do not match")
		return
	}

	hash, err := hashPassword(next)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := db.UpdateAdminPassword(username, hash); err != nil {
		log.Printf("auth: update password for %s: %v", username, err)
		http.Error(w, "failed to update password", http.StatusInternalServerError)
		return
	}
	log.Printf("auth: password changed for %s", username)
	http.Redirect(w, r, "/config?saved=password", http.StatusSeeOther)
}
