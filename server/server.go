// Package server exposes a small read-only status surface over the
// running Session, grounded on glennswest-ipmiserial/server's
// mux.Router + logging-middleware shape (§2 SPEC_FULL.md Ambient
// Stack). It never drives ticks itself — it is observability glue.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/hnw/skstack-broute/session"
)

// Server wires a router in front of *session.Session.
type Server struct {
	sess   *session.Session
	router *mux.Router
	http   *http.Server
	port   int
}

// New builds a Server reporting sess's state on port.
func New(sess *session.Session, port int) *Server {
	s := &Server{sess: sess, router: mux.NewRouter(), port: port}
	s.router.Use(loggingMiddleware)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	return s
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Debug("status request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.sess.Parameter()
	body := map[string]interface{}{
		"init_state":    s.sess.GetInitState().String(),
		"comm_state":    s.sess.GetCommState().String(),
		"firmware":      string(s.sess.FirmwareVersion()),
		"stuck_in_scan": s.sess.StuckInScan(),
		"parameter": map[string]string{
			"channel":      p.Channel,
			"channel_page": p.ChannelPage,
			"pan_id":       p.PanID,
			"mac_address":  p.MacAddress,
			"ipv6_address": p.IPv6Address,
			"dest_ipv6":    p.DestIPv6,
			"lqi":          p.LQI,
			"pair_id":      p.PairID,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{Addr: fmt.Sprintf(":%d", s.port), Handler: s.router}
	go func() {
		<-ctx.Done()
		s.http.Shutdown(context.Background())
	}()
	log.Infof("status server listening on :%d", s.port)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
