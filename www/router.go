package www

import (
	"html/template"
	"io/fs"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"arogyadash/engine"
	"arogyadash/ratelimit"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	tmpls    map[string]*template.Template
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	cfg := eng.AppConfig()
	cfg.RLock()
	secret := cfg.Web.SessionSecret
	rl := cfg.Web.RateLimit
	cfg.RUnlock()

	// Parse the layout once; each page is cloned separately so that every
	// page can define its own "content".
	base := template.New("").Funcs(templateFuncs())
	base = template.Must(base.ParseFS(templateFS, "templates/layout.html"))

	pages := []string{
		"templates/dashboard.html",
		"templates/login.html",
		"templates/config.html",
	}
	tmpls := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		clone := template.Must(base.Clone())
		clone = template.Must(clone.ParseFS(templateFS, p))
		tmpls[p[len("templates/"):]] = clone
	}

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(secret),
		tmpls:    tmpls,
		eventHub: hub,
	}

	ensureDefaultAdmin(eng.DB())

	var limiter *ratelimit.Limiter
	if rl.RequestsPerInterval > 0 {
		var err error
		limiter, err = ratelimit.New(rl.RequestsPerInterval, rl.Interval, 0)
		if err != nil {
			log.Printf("www: rate limiting disabled: %v", err)
			limiter = nil
		} else {
			limiter.SetTrustedProxies(rl.TrustedProxies)
			if m := eng.Metrics(); m != nil {
				limiter.OnReject(func(string) { m.IncRateLimitRejections() })
			}
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Compress(5))

	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// SSE
	r.Get("/events", h.handleEvents)

	// Routes that mount a dashboard session
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Get("/", h.handleDashboard)
		r.Get("/api/dashboard", h.apiDashboard)
		r.Get("/api/hospitals", h.apiHospitals)
		r.Get("/api/cities", h.apiCities)
		r.Get("/api/chart", h.apiChart)
		r.Get("/api/alerts", h.apiAlerts)
		r.Get("/api/plan", h.apiPlan)
	})

	r.Get("/api/sessions/{id}", h.apiSessionModel)
	r.Get("/api/health", h.apiHealthCheck)
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)

	if m := eng.Metrics(); m != nil {
		r.Handle("/metrics", m.Handler())
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/config", h.handleConfig)
		r.Post("/config/save", h.handleConfigSave)
		r.Post("/config/password", h.handleChangePassword)
	})

	stopFn := func() {
		hub.Stop()
		if limiter != nil {
			limiter.Close()
		}
	}

	return r, stopFn
}

func (h *Handlers) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := h.tmpls[name]
	if !ok {
		log.Printf("render: template %q not found", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		log.Printf("render %s: %v", name, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
