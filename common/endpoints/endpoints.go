package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/common/stats"
)

const shutdownTimeout = 5 * time.Second

// AdminServer serves health and stats over http next to a running scheduler.
type AdminServer struct {
	Addr  string
	Stats stats.StatsReceiver
	mux   *http.ServeMux
}

func NewAdminServer(addr string, stat stats.StatsReceiver) *AdminServer {
	s := &AdminServer{
		Addr:  addr,
		Stats: stat,
		mux:   http.NewServeMux(),
	}
	s.mux.HandleFunc("/", helpHandler)
	s.mux.HandleFunc("/health", healthHandler)
	s.mux.HandleFunc("/admin/metrics.json", s.statsHandler)
	return s
}

// HandleJSON serves the result of fn as JSON at path.
func (s *AdminServer) HandleJSON(path string, fn func() interface{}) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(fn()); err != nil {
			http.Error(w, err.Error(), 500)
		}
	})
}

func (s *AdminServer) Handler() http.Handler {
	return s.mux
}

// Serve blocks until ctx is done or the listener fails.
func (s *AdminServer) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.mux}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Serving http & stats on %s", s.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Error(w, "Common paths: '/health', '/admin/metrics.json'", 501)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

func (s *AdminServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	const contentTypeHdr = "Content-Type"
	const contentTypeVal = "application/json; charset=utf-8"
	w.Header().Set(contentTypeHdr, contentTypeVal)

	pretty := r.URL.Query().Get("pretty") == "true"
	str := s.Stats.Render(pretty)
	if _, err := io.Copy(w, bytes.NewBuffer(str)); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
}
