// Package server exposes the article archive and pipeline over HTTP: HTML
// pages for browsing generated articles and a small JSON API for submitting
// generation requests.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/draftwire/draftwire/internal/database"
	"github.com/draftwire/draftwire/internal/pipeline"
)

var md = goldmark.New()

// Runner executes the pipeline for a stored article. Satisfied by
// *pipeline.Engine.
type Runner interface {
	ExecuteByArticleID(ctx context.Context, articleID int64) pipeline.Result
}

// Server is the HTTP server for the article archive and pipeline API.
type Server struct {
	db     *database.DB
	runner Runner
	pages  map[string]*template.Template
	mux    *http.ServeMux
}

// New creates a new Server. runner may be nil, in which case submitted
// articles stay pending until run from the CLI.
func New(db *database.DB, runner Runner) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base").Funcs(funcMap).Parse(baseHTML)
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of the base so its {{define}} blocks
	// do not collide.
	pageBodies := map[string]string{
		"index.html":   indexHTML,
		"article.html": articleHTML,
	}
	pages := make(map[string]*template.Template, len(pageBodies))
	for name, body := range pageBodies {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.Parse(body); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, runner: runner, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/article/", s.handleArticle)

	s.mux.HandleFunc("/api/articles", s.handleAPIArticles)
	s.mux.HandleFunc("/api/articles/", s.handleAPIArticle)
	s.mux.HandleFunc("/api/stats", s.handleAPIStats)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	articles, err := s.db.ListArticles(100)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Articles": articles,
	})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimPrefix(r.URL.Path, "/article/")
	if slug == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	// Slug paths are org-scoped: /article/<org>/<slug>.
	parts := strings.SplitN(slug, "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	article, err := s.db.GetLatestArticle(parts[0], parts[1])
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if article == nil {
		http.NotFound(w, r)
		return
	}

	s.render(w, "article.html", map[string]any{
		"Article": article,
	})
}

// createRequest is the JSON API shape for submitting a generation job.
type createRequest struct {
	pipeline.Request
	Run bool `json:"run"`
}

type createResponse struct {
	ID      int64  `json:"id"`
	Slug    string `json:"slug"`
	Version int    `json:"version"`
	Status  string `json:"status"`
}

func (s *Server) handleAPIArticles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		articles, err := s.db.ListArticles(100)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "listing articles")
			return
		}
		writeJSON(w, http.StatusOK, articles)

	case http.MethodPost:
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Slug = database.NormalizeSlug(req.Slug)

		article, err := pipeline.CreateArticle(s.db, &req.Request)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		status := http.StatusCreated
		if req.Run && s.runner != nil {
			// The pipeline runs in the background; poll the article for
			// progress.
			go s.runPipeline(article.ID)
			status = http.StatusAccepted
		}
		writeJSON(w, status, createResponse{
			ID:      article.ID,
			Slug:    article.Slug,
			Version: article.Version,
			Status:  article.Status,
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) runPipeline(articleID int64) {
	result := s.runner.ExecuteByArticleID(context.Background(), articleID)
	if !result.Success {
		log.Printf("article %d: pipeline failed: %s", articleID, result.Error)
	}
}

func (s *Server) handleAPIArticle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/articles/")
	parts := strings.SplitN(path, "/", 2)

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid article id")
		return
	}

	if len(parts) == 2 && parts[1] == "runs" {
		runs, err := s.db.GetRunsForArticle(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "listing runs")
			return
		}
		writeJSON(w, http.StatusOK, runs)
		return
	}

	article, err := s.db.GetArticle(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading article")
		return
	}
	if article == nil {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, runner Runner, port int) error {
	srv, err := New(db, runner)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}

const baseHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{block "title" .}}Draftwire{{end}}</title>
<style>
body { font-family: Georgia, serif; max-width: 760px; margin: 2rem auto; padding: 0 1rem; color: #222; }
h1, h2 { font-family: Helvetica, Arial, sans-serif; }
table { border-collapse: collapse; width: 100%; }
td, th { padding: .4rem .6rem; border-bottom: 1px solid #ddd; text-align: left; }
.status { font-family: monospace; font-size: .85em; }
.blob { color: #555; }
</style>
</head>
<body>
{{block "content" .}}{{end}}
</body>
</html>`

const indexHTML = `{{define "title"}}Articles - Draftwire{{end}}
{{define "content"}}
<h1>Articles</h1>
{{if .Articles}}
<table>
<tr><th>Slug</th><th>Version</th><th>Headline</th><th>Status</th><th>Updated</th></tr>
{{range .Articles}}
<tr>
<td><a href="/article/{{.OrgID}}/{{.Slug}}">{{.Slug}}</a></td>
<td>v{{.Version}}</td>
<td>{{deref .Headline}}</td>
<td class="status">{{.Status}}</td>
<td>{{deref .UpdatedAt}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No articles yet.</p>
{{end}}
{{end}}`

const articleHTML = `{{define "title"}}{{deref .Article.Headline}} - Draftwire{{end}}
{{define "content"}}
<p><a href="/">&larr; All articles</a></p>
<h1>{{deref .Article.Headline}}</h1>
<p class="status">{{.Article.Slug}} v{{.Article.Version}} | {{.Article.Status}}</p>
{{range .Article.Blobs}}<p class="blob"><strong>{{.}}</strong></p>{{end}}
{{markdown (deref .Article.Content)}}
{{end}}`
