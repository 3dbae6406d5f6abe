package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

func (app *Application) Serve() error {
	srv := &http.Server{
		Addr:         app.Config.HTTPPort,
		Handler:      app.BuildRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	shutdownErr := make(chan error)

	go func() {
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
		s := <-shutdown
		log.Info().Str("signal", s.String()).Msg("Shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			shutdownErr <- err
			return
		}

		log.Info().Msg("Closing feed connections")
		if app.Feed != nil {
			app.Feed.Close()
		}
		shutdownErr <- nil
	}()

	log.Info().Str("addr", app.Config.HTTPPort).Msg("Starting server")

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownErr; err != nil {
		return err
	}

	log.Info().Str("addr", app.Config.HTTPPort).Msg("Stopped server")
	return nil
}
