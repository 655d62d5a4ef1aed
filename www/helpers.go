package www

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"arogyadash/dashboard"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"timeAgo": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			d := time.Since(t)
			switch {
			case d < time.Minute:
				return "just now"
			case d < time.Hour:
				return plural(int(d.Minutes()), "minute")
			case d < 24*time.Hour:
				return plural(int(d.Hours()), "hour")
			default:
				return plural(int(d.Hours()/24), "day")
			}
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("2006-01-02 15:04:05")
		},
		"upper": strings.ToUpper,
		"alertClass": func(level string) string {
			switch strings.ToLower(level) {
			case "critical":
				return "badge-critical"
			case "high":
				return "badge-high"
			case "moderate", "medium":
				return "badge-moderate"
			default:
				return "badge-low"
			}
		},
		// barWidth clamps an occupancy percentage for the chart bars.
		"barWidth": func(pct int) int {
			if pct < 0 {
				return 0
			}
			if pct > 100 {
				return 100
			}
			return pct
		},
		"isSelected": func(f dashboard.Filter, city string) bool {
			return strings.EqualFold(f.City, city)
		},
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// filterFromQuery reads ?q= and ?city= as given. An all whitespace search
// still constrains the list and a padded city matches nothing.
func filterFromQuery(r *http.Request) dashboard.Filter {
	q := r.URL.Query()
	return dashboard.Filter{
		Search: q.Get("q"),
		City:   q.Get("city"),
	}
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
