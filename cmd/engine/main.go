package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/restopos-api/internal/app"
)

func main() {
	ctx := context.Background()

	container, err := app.New(ctx)
	if err != nil {
		panic("inicializar motor de lotes: " + err.Error())
	}
	defer container.Close()
	log := container.Log

	// Barrido de vencimientos: una pasada al arrancar y luego cada hora.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			n, err := container.Recorder.SweepExpired(sweepCtx, time.Now())
			if err != nil {
				log.Error().Err(err).Msg("barrido de vencimientos")
			} else if n > 0 {
				log.Info().Int("batches", n).Msg("lotes vencidos barridos")
			}
			select {
			case <-ticker.C:
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := container.Pool.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"down"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","service":"` + container.Config.App.Name + `"}`))
	})

	srv := &http.Server{
		Addr:         container.Config.HTTP.Addr(),
		Handler:      mux,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("listener de observabilidad finalizado")
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("observabilidad en /health y /metrics")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del listener")
	}

	log.Info().Msg("motor detenido")
}
