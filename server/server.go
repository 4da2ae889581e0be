package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/robfig/cron"
	"golang.org/x/net/netutil"

	"github.com/microcosm-collective/pantry/controller"
	"github.com/microcosm-collective/pantry/metrics"
)

// RequestIDHeader carries the id of a request, either the one the client
// sent or one made up for it
const RequestIDHeader = "X-Request-ID"

const shutdownTimeout = 10 * time.Second

// NewRouter registers every handler and wraps them with request logging
func NewRouter(hs *controller.Handlers) *mux.Router {
	r := mux.NewRouter()

	for url, handler := range routes(hs) {
		r.HandleFunc(url, handler)
	}

	r.Use(requestLogger(hs.Metrics))

	return r
}

// StartServer owns the http process and cron jobs. It listens on port,
// accepting at most maxConnections at once, until ctx is done.
func StartServer(
	ctx context.Context,
	port int64,
	maxConnections int,
	hs *controller.Handlers,
	jobs map[string]func(),
) error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("net.Listen(%d) %w", port, err)
	}

	return Serve(ctx, netutil.LimitListener(l, maxConnections), hs, jobs)
}

// Serve runs the cron jobs and serves requests on l until ctx is done, then
// lets in-flight requests finish before returning
func Serve(
	ctx context.Context,
	l net.Listener,
	hs *controller.Handlers,
	jobs map[string]func(),
) error {
	c := cron.New()
	for schedule, job := range jobs {
		err := c.AddFunc(schedule, job)
		if err != nil {
			l.Close()
			return fmt.Errorf("c.AddFunc(%s) %w", schedule, err)
		}
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Handler:           NewRouter(hs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(l)
	}()

	if glog.V(2) {
		glog.Infof("Listening on %s", l.Addr())
	}

	select {
	case err := <-errs:
		return fmt.Errorf("srv.Serve() %w", err)
	case <-ctx.Done():
	}

	glog.Warning("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("srv.Shutdown() %w", err)
	}

	err = <-errs
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("srv.Serve() %w", err)
	}

	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func requestLogger(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			dur := time.Since(start)
			m.RequestDuration.
				WithLabelValues(route, strconv.Itoa(rec.status)).
				Observe(dur.Seconds())

			if rec.status >= http.StatusInternalServerError {
				glog.Warningf(
					"%s %s %s %d %s",
					requestID,
					r.Method,
					r.URL.Path,
					rec.status,
					dur,
				)
			} else if glog.V(2) {
				glog.Infof(
					"%s %s %s %d %s",
					requestID,
					r.Method,
					r.URL.Path,
					rec.status,
					dur,
				)
			}
		})
	}
}
