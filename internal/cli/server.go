package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"etwtap/internal/logger"
	"etwtap/internal/metrics"
	"etwtap/internal/stats"
)

type server struct {
	srv *http.Server
	log log.Logger
}

type sessionStatus struct {
	Name    string             `json:"name"`
	Running *bool              `json:"running,omitempty"`
	Pending *int               `json:"pending,omitempty"`
	Stats   stats.SessionStats `json:"stats"`
}

// newRouter wires /metrics, /stats and the index page.
func newRouter(metricsPath string, pprofEnabled bool, reg *prometheus.Registry, sessions *metrics.SessionCollector) *mux.Router {
	r := mux.NewRouter()
	r.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		out := []sessionStatus{}
		for _, src := range sessions.Sources() {
			st := sessionStatus{Name: src.Name(), Stats: src.Stats()}
			if rs, ok := src.(interface{ IsRunning() bool }); ok {
				running := rs.IsRunning()
				st.Running = &running
			}
			if ps, ok := src.(interface{ Pending() (int, int) }); ok {
				pending, _ := ps.Pending()
				st.Pending = &pending
			}
			out = append(out, st)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})
	r.HandleFunc("/stats/{session}", func(w http.ResponseWriter, req *http.Request) {
		name := mux.Vars(req)["session"]
		for _, src := range sessions.Sources() {
			if src.Name() == name {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(src.Stats())
				return
			}
		}
		http.NotFound(w, req)
	})
	if pprofEnabled {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}
	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>
            <head><title>etwtap</title></head>
            <body>
            <h1>etwtap v` + version + `</h1>
            <p><a href="` + metricsPath + `">Metrics</a></p>
            <p><a href="/stats">Session stats</a></p>
            </body>
            </html>`))
	})
	return r
}

func (a *app) startServer(reg *prometheus.Registry, sessions *metrics.SessionCollector) *server {
	sc := a.cfg.Server
	s := &server{
		srv: &http.Server{
			Addr:              sc.ListenAddress,
			Handler:           newRouter(sc.MetricsPath, sc.PprofEnabled, reg, sessions),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger.NewLoggerWithContext("http"),
	}

	s.log.Info().Str("address", sc.ListenAddress).Str("metrics_path", sc.MetricsPath).Msg("Starting HTTP server")
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	return s
}

func (s *server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("Error shutting down HTTP server")
	}
}
