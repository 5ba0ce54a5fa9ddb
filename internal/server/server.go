package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/TobiSchelling/vhireport/internal/aggregate"
	"github.com/TobiSchelling/vhireport/internal/database"
	"github.com/TobiSchelling/vhireport/internal/render"
	"github.com/TobiSchelling/vhireport/internal/vhi"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Dataset supplies a freshly loaded dataset and the drought rule to apply.
type Dataset interface {
	Dataset() ([]vhi.Observation, vhi.LoadStats, error)
	DroughtRule() aggregate.DroughtRule
}

// Server is the HTTP server for browsing reports.
type Server struct {
	data  Dataset
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(data Dataset, db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base with its own "content" block.
	pageNames := []string{"index.html", "report.html", "run.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{data: data, db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/report/stats", s.handleStats)
	s.mux.HandleFunc("/report/year", s.handleYear)
	s.mux.HandleFunc("/report/years", s.handleYears)
	s.mux.HandleFunc("/report/drought", s.handleDrought)
	s.mux.HandleFunc("/runs/", s.handleRun)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var runs []database.Run
	if s.db != nil {
		var err error
		runs, err = s.db.GetRecentRuns(20)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	s.render(w, "index.html", map[string]any{
		"Runs": runs,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	obs, ok := s.load(w)
	if !ok {
		return
	}
	s.renderTable(w, render.StatsTable(aggregate.StatsByRegionYear(obs)))
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("year")
	if year == "" {
		http.Error(w, "missing year parameter", http.StatusBadRequest)
		return
	}
	obs, ok := s.load(w)
	if !ok {
		return
	}
	rows := aggregate.ObservationsForYear(obs, year)
	s.renderTable(w, render.ProjectionTable("year_"+year, "VHI in "+year, rows))
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	var years []string
	for _, y := range r.URL.Query()["year"] {
		if y != "" {
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		http.Error(w, "missing year parameter", http.StatusBadRequest)
		return
	}
	obs, ok := s.load(w)
	if !ok {
		return
	}
	rows := aggregate.ObservationsForYears(obs, years)
	s.renderTable(w, render.ProjectionTable("years", "VHI in "+strings.Join(years, ", "), rows))
}

func (s *Server) handleDrought(w http.ResponseWriter, r *http.Request) {
	obs, ok := s.load(w)
	if !ok {
		return
	}
	s.renderTable(w, render.DroughtTable(aggregate.DroughtReport(obs, s.data.DroughtRule())))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/runs/")
	if runID == "" || s.db == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	run, err := s.db.GetRun(runID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}
	attempts, err := s.db.GetAttemptsForRun(runID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "run.html", map[string]any{
		"Run":      run,
		"Attempts": attempts,
	})
}

// load reads the dataset; files that could not be attributed are logged
// and the rest is served.
func (s *Server) load(w http.ResponseWriter) ([]vhi.Observation, bool) {
	obs, _, err := s.data.Dataset()
	if err != nil {
		if obs == nil {
			log.Printf("Error loading dataset: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return nil, false
		}
		log.Printf("Partial dataset: %v", err)
	}
	return obs, true
}

func (s *Server) renderTable(w http.ResponseWriter, t render.Table) {
	html, err := render.HTML(t)
	if err != nil {
		log.Printf("Error rendering %s: %v", t.Name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "report.html", map[string]any{
		"Title": t.Title,
		"Rows":  len(t.Rows),
		"Table": template.HTML(html), //nolint: gosec
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

// Serve starts the HTTP server on the given port.
func Serve(data Dataset, db *database.DB, port int) error {
	srv, err := New(data, db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
