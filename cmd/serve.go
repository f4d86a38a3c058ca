package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reproject-cli/internal/config"
	"github.com/sells-group/reproject-cli/internal/crs"
	"github.com/sells-group/reproject-cli/internal/dataset"
	"github.com/sells-group/reproject-cli/internal/utm"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg.Server.Port = resolvePort(servePort, cfg.Server.Port)
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		return startServer(ctx, buildRouter(cfg), cfg.Server.Port)
	},
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves h on port until ctx is cancelled.
func startServer(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// api holds the settings the handlers share.
type api struct {
	cfg     *config.Config
	maxBody int64
}

// buildRouter wires the API routes onto a chi router.
func buildRouter(c *config.Config) http.Handler {
	a := &api{cfg: c, maxBody: int64(c.Server.MaxBodyMB) << 20}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Utm-Zone", "X-Repaired-Ids"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/zone", a.handleZone)
		r.Post("/reproject", a.handleReproject)
		r.Post("/validate", a.handleValidate)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().With(zap.String("component", "api")).Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// options resolves per-request overrides from the query string.
func (a *api) options(r *http.Request) (runOptions, error) {
	o, err := optionsFromConfig(a.cfg, r.URL.Query().Get("crs"))
	if err != nil {
		return runOptions{}, err
	}
	q := r.URL.Query()
	if v := q.Get("verify_repairs"); v != "" {
		if o.VerifyRepairs, err = strconv.ParseBool(v); err != nil {
			return runOptions{}, eris.Wrapf(errBadRequest, "verify_repairs: %q", v)
		}
	}
	if v := q.Get("irregular_zones"); v != "" {
		if o.IrregularZones, err = strconv.ParseBool(v); err != nil {
			return runOptions{}, eris.Wrapf(errBadRequest, "irregular_zones: %q", v)
		}
	}
	if v := q.Get("digits"); v != "" {
		if o.Write.MaxDecimalDigits, err = strconv.Atoi(v); err != nil {
			return runOptions{}, eris.Wrapf(errBadRequest, "digits: %q", v)
		}
	}
	return o, nil
}

// readDataset decodes the GeoJSON request body.
func (a *api) readDataset(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, runOptions, error) {
	o, err := a.options(r)
	if err != nil {
		return nil, o, err
	}
	ds, err := dataset.ReadGeoJSON(http.MaxBytesReader(w, r.Body, a.maxBody), o.SourceCRS)
	if err != nil {
		return nil, o, err
	}
	return ds, o, nil
}

func (a *api) handleZone(w http.ResponseWriter, r *http.Request) {
	ds, o, err := a.readDataset(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	zone, err := o.reprojector(utm.Discard).IdentifyZone(ds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"zone": int(zone),
		"crs":  crs.UTM(int(zone)),
	})
}

func (a *api) handleReproject(w http.ResponseWriter, r *http.Request) {
	ds, o, err := a.readDataset(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := o.reprojector(sinkFor("api")).Reprojected(ds)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := dataset.WriteGeoJSON(&buf, res.Dataset, o.Write); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Utm-Zone", res.Zone.String())
	w.Header().Set("X-Repaired-Ids", strings.Join(res.Report.IDs, ","))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type findingJSON struct {
	ID     string    `json:"id"`
	Reason string    `json:"reason"`
	Point  []float64 `json:"point,omitempty"`
}

func (a *api) handleValidate(w http.ResponseWriter, r *http.Request) {
	ds, o, err := a.readDataset(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	var reproject bool
	if v := r.URL.Query().Get("reproject"); v != "" {
		if reproject, err = strconv.ParseBool(v); err != nil {
			writeError(w, eris.Wrapf(errBadRequest, "reproject: %q", v))
			return
		}
	}

	rp := o.reprojector(utm.Discard)
	if reproject {
		zone, err := rp.IdentifyZone(ds)
		if err != nil {
			writeError(w, err)
			return
		}
		if ds, err = rp.Reproject(ds, zone); err != nil {
			writeError(w, err)
			return
		}
	}
	findings, err := rp.Check(ds)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]findingJSON, 0, len(findings))
	for _, f := range findings {
		fj := findingJSON{ID: f.ID, Reason: f.Err.Reason}
		if f.Err.Point != nil {
			fj.Point = []float64(f.Err.Point)
		}
		out = append(out, fj)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"crs":      ds.CRS,
		"features": ds.Len(),
		"findings": out,
	})
}

var errBadRequest = eris.New("invalid request")

// statusFor maps pipeline errors onto HTTP status codes. Backend failures
// and anything unclassified are 500.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case utm.IsEmptyInput(err):
		return http.StatusUnprocessableEntity
	case utm.IsConfiguration(err),
		eris.Is(err, errBadRequest),
		eris.Is(err, dataset.ErrMalformed),
		eris.Is(err, dataset.ErrUnsupportedFormat),
		eris.Is(err, crs.ErrInvalid),
		eris.Is(err, crs.ErrUnsupported):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().With(zap.String("component", "api")).Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
