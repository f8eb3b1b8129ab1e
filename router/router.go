package router

import (
	"log"
	"net/http"
	"os"
	"strings"

	"chatoverlay/appcontext"
	"chatoverlay/db"
)

type AppHandlerFunc func(ctx *appcontext.AppContext)

// Router wraps a ServeMux with a middleware chain. Handlers registered
// through Handle receive a pooled AppContext carrying the router's logger
// and database pool.
type Router struct {
	mux     *http.ServeMux
	mw      []func(http.Handler) http.Handler
	handler http.Handler
	routes  []string
	Pool    *db.DBPool
	Logger  *log.Logger
}

func NewRouter(tag string) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		Logger: log.New(os.Stdout, "["+tag+"] ", log.LstdFlags),
	}
}

func (m *Router) chain() http.Handler {
	if m.handler == nil {
		handler := http.Handler(m.mux)
		for i := len(m.mw) - 1; i >= 0; i-- {
			handler = m.mw[i](handler)
		}
		m.handler = handler
	}
	return m.handler
}

func (m *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.chain().ServeHTTP(w, r)
}

// Use appends middleware. The first one registered runs outermost.
func (m *Router) Use(middleware func(http.Handler) http.Handler) {
	m.mw = append(m.mw, middleware)
	m.handler = nil
}

func (m *Router) Handle(pattern string, handler AppHandlerFunc) {
	m.routes = append(m.routes, pattern)
	m.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx := appcontext.GetAppContext()
		ctx.Writer = w
		ctx.Request = r
		ctx.Context = r.Context()
		ctx.Logger = m.Logger
		ctx.Pool = m.Pool
		defer appcontext.CleanPut(ctx)
		handler(ctx)
	})
}

func (m *Router) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	m.routes = append(m.routes, pattern)
	m.mux.HandleFunc(pattern, handler)
}

// Include mounts router under prefix. An empty or "/" prefix mounts it at
// the root.
func (m *Router) Include(router *Router, prefix string) {
	prefix = strings.TrimRight(prefix, "/")
	for _, pattern := range router.routes {
		m.routes = append(m.routes, withPrefix(pattern, prefix))
	}
	if prefix == "" {
		m.mux.Handle("/", router.chain())
		return
	}
	m.mux.Handle(prefix+"/", http.StripPrefix(prefix, router.chain()))
}

// Routes lists the registered patterns, with Include prefixes applied.
func (m *Router) Routes() []string {
	return append([]string(nil), m.routes...)
}

// withPrefix puts prefix in front of the path part of a "METHOD /path"
// pattern.
func withPrefix(pattern, prefix string) string {
	if prefix == "" {
		return pattern
	}
	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		return prefix + pattern
	}
	return method + " " + prefix + path
}
