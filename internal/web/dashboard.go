package web

import (
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

// DashboardHandler serves the live detection feed page. wsPath is the
// WebSocket endpoint the page subscribes to.
func DashboardHandler(wsPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		if err := dashboardTemplate.Execute(w, struct{ WSPath string }{wsPath}); err != nil {
			http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		}
	}
}
