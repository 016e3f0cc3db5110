package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/internal/monitoring"
	"github.com/creatorindex/profile-cli/internal/profilestore"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for pipeline requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		collector := monitoring.NewCollector(env.Store)
		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
			snap, err := collector.Collect(r.Context())
			if err != nil {
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(snap)
		})

		mux.HandleFunc("POST /webhook/generate", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.Name == "" {
				http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
				return
			}

			// Run the pipeline asynchronously; the webhook only acknowledges.
			go func() {
				result := env.Pipeline.Run(ctx, req.Name, model.TriggerInitialCreation, "webhook")
				if !result.Success {
					zap.L().Error("webhook pipeline failed",
						zap.String("subject", req.Name),
						zap.String("message", result.Message),
					)
					return
				}
				zap.L().Info("webhook pipeline complete",
					zap.String("subject_id", result.SubjectID),
					zap.Int("score", result.Profile.ConfidenceScore),
				)
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status":  "accepted",
				"subject": req.Name,
			})
		})

		mux.HandleFunc("POST /webhook/sync", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				SubjectID string `json:"subject_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.SubjectID == "" {
				http.Error(w, `{"error":"subject_id is required"}`, http.StatusBadRequest)
				return
			}

			result := env.Syncer.SyncProfile(r.Context(), req.SubjectID)
			w.Header().Set("Content-Type", "application/json")
			if result.Outcome == model.SyncFailed {
				w.WriteHeader(http.StatusUnprocessableEntity)
			}
			json.NewEncoder(w).Encode(result)
		})

		mux.HandleFunc("GET /subjects/{id}", func(w http.ResponseWriter, r *http.Request) {
			record, err := env.Store.GetSubject(r.Context(), r.PathValue("id"))
			if err != nil {
				if eris.Is(err, profilestore.ErrNotFound) {
					http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
					return
				}
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(record)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
