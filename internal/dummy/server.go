package dummy

import (
	"encoding/json"
	"fmt"
	"html/template"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const pageSize = 10

type ServerConfig struct {
	Port int

	// Latency is added to every response, with up to Jitter on top.
	Latency time.Duration
	Jitter  time.Duration

	// ErrorRate is the share of requests answered with a 500, in [0, 1].
	ErrorRate float64

	// Quiet disables the request log.
	Quiet bool
}

type server struct {
	cfg     ServerConfig
	catalog *catalog

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRouter serves a small computer database: a searchable, paginated list,
// detail pages, a creation form and a JSON view of each computer.
func NewRouter(cfg ServerConfig) http.Handler {
	s := &server{
		cfg:     cfg,
		catalog: newCatalog(),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	r := chi.NewRouter()
	if !cfg.Quiet {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.chaos)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/computers", http.StatusSeeOther)
	})
	r.Route("/computers", func(r chi.Router) {
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Get("/new", s.form)
		r.Get("/{id}", s.detail)
	})
	r.Get("/api/computers/{id}", s.detailJSON)
	return r
}

// chaos adds the configured latency and random failures.
func (s *server) chaos(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		delay := s.cfg.Latency
		if s.cfg.Jitter > 0 {
			delay += time.Duration(s.rnd.Int63n(int64(s.cfg.Jitter)))
		}
		fail := s.cfg.ErrorRate > 0 && s.rnd.Float64() < s.cfg.ErrorRate
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if fail {
			http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type listPage struct {
	Filter    string
	Total     int
	Page      int
	Computers []Computer
	Prev      int
	Next      int
	HasPrev   bool
	HasNext   bool
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("f")
	page, _ := strconv.Atoi(r.URL.Query().Get("p"))
	if page < 0 {
		page = 0
	}
	items, total := s.catalog.search(filter, page, pageSize)
	render(w, http.StatusOK, listTmpl, listPage{
		Filter:    filter,
		Total:     total,
		Page:      page,
		Computers: items,
		Prev:      page - 1,
		Next:      page + 1,
		HasPrev:   page > 0,
		HasNext:   (page+1)*pageSize < total,
	})
}

func (s *server) detail(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.lookup(w, r)
	if !ok {
		return
	}
	render(w, http.StatusOK, detailTmpl, comp)
}

func (s *server) detailJSON(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"computer": comp})
}

func (s *server) lookup(w http.ResponseWriter, r *http.Request) (Computer, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return Computer{}, false
	}
	comp, ok := s.catalog.get(id)
	if !ok {
		http.NotFound(w, r)
		return Computer{}, false
	}
	return comp, true
}

type formPage struct {
	Computer Computer
	Error    string
}

func (s *server) form(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, formTmpl, formPage{})
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	comp := Computer{
		Name:         strings.TrimSpace(r.PostForm.Get("name")),
		Introduced:   r.PostForm.Get("introduced"),
		Discontinued: r.PostForm.Get("discontinued"),
	}
	if id, err := strconv.Atoi(r.PostForm.Get("company")); err == nil {
		comp.Company = companies[id]
	}

	var problem string
	switch {
	case comp.Name == "":
		problem = "name is required"
	case !validDate(comp.Introduced):
		problem = "introduced must be yyyy-MM-dd"
	case !validDate(comp.Discontinued):
		problem = "discontinued must be yyyy-MM-dd"
	}
	if problem != "" {
		render(w, http.StatusBadRequest, formTmpl, formPage{Computer: comp, Error: problem})
		return
	}

	created := s.catalog.add(comp)
	w.Header().Set("X-Computer-Id", strconv.Itoa(created.ID))
	http.Redirect(w, r, "/computers", http.StatusSeeOther)
}

func validDate(v string) bool {
	if v == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", v)
	return err == nil
}

func render(w http.ResponseWriter, status int, t *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	t.Execute(w, data)
}

// NewServer wraps the router in an http.Server listening on cfg.Port.
func NewServer(cfg ServerConfig) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Start runs the server in the background and returns it for shutdown.
func Start(cfg ServerConfig) *http.Server {
	server := NewServer(cfg)
	fmt.Printf("👻 Dummy Server running on http://localhost%s\n", server.Addr)
	fmt.Println("   Endpoints: /, /computers?f=&p=, /computers/{id}, /computers/new, POST /computers, /api/computers/{id}")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server failed: %v\n", err)
		}
	}()
	return server
}
