package www

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"arogyadash/config"
)

func (h *Handlers) handleConfig(w http.ResponseWriter, r *http.Request) {
	h.renderConfig(w, r, "")
}

func (h *Handlers) renderConfig(w http.ResponseWriter, r *http.Request, formErr string) {
	cfg := h.engine.AppConfig()
	cfg.RLock()
	view := &config.Config{Backend: cfg.Backend, Agent: cfg.Agent}
	cfg.RUnlock()

	data := map[string]any{
		"Page":          "config",
		"Authenticated": h.isAuthenticated(r),
		"Username":      h.getUsername(r),
		"Config":        view,
		"Saved":         r.URL.Query().Get("saved"),
		"Error":         formErr,
	}
	if key, _, ok := config.BaseURLOverride(os.Getenv); ok {
		data["BaseURLEnv"] = key
	}
	if db := h.engine.DB(); db != nil {
		if entries, err := db.ListConfigAudit(25); err == nil {
			data["Audit"] = entries
		} else {
			log.Printf("config: list audit: %v", err)
		}
	}
	if formErr != "" {
		w.WriteHeader(http.StatusBadRequest)
	}
	h.render(w, "config.html", data)
}

// parseConfigForm applies the submitted backend and agent fields to next.
func parseConfigForm(r *http.Request, next *config.Config) error {
	baseURL := strings.TrimRight(strings.TrimSpace(r.FormValue("backend_base_url")), "/")
	u, err := url.Parse(baseURL)
	if baseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base URL %q is not an absolute URL", baseURL)
	}
	next.Backend.BaseURL = baseURL

	if v := r.FormValue("backend_cache_ttl"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid cache TTL %q", v)
		}
		next.Backend.CacheTTL = d
	}

	switch src := r.FormValue("agent_source"); src {
	case "mock", "proxy":
		next.Agent.Source = src
	default:
		return fmt.Errorf("unknown agent source %q", src)
	}
	if v := r.FormValue("agent_delay"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid agent delay %q", v)
		}
		next.Agent.Delay = d
	}
	if v := strings.TrimSpace(r.FormValue("agent_proxy_path")); v != "" {
		if !strings.HasPrefix(v, "/") {
			v = "/" + v
		}
		next.Agent.ProxyPath = v
	}
	return nil
}

func (h *Handlers) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := h.engine.AppConfig()
	cfg.RLock()
	next := &config.Config{Backend: cfg.Backend, Agent: cfg.Agent, Messaging: cfg.Messaging}
	cfg.RUnlock()

	if err := parseConfigForm(r, next); err != nil {
		h.renderConfig(w, r, err.Error())
		return
	}
	if key, pinned, ok := config.BaseURLOverride(os.Getenv); ok && next.Backend.BaseURL != pinned {
		h.renderConfig(w, r, fmt.Sprintf("backend base URL is set by %s and cannot be changed here", key))
		return
	}

	actor := h.getUsername(r)
	if actor == "" {
		actor = "admin"
	}
	h.engine.ApplyConfig(next, actor)

	if path := h.engine.ConfigPath(); path != "" {
		if err := cfg.Save(path); err != nil {
			log.Printf("config: save error: %v", err)
			http.Error(w, "Failed to save: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	log.Printf("config: saved by %s", actor)
	http.Redirect(w, r, "/config?saved=1", http.StatusSeeOther)
}
