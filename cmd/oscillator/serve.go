package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gwillem/oscillator/pkg/remote"
)

type ServeCommand struct {
	MotionFlags `group:"Motion options"`
	Addr        string `long:"addr" default:"127.0.0.1:8080" description:"HTTP listen address"`
}

func (c *ServeCommand) Execute(args []string) error {
	s, err := startSession(&c.MotionFlags, false)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           remote.NewRouter(s.ctrl, s.log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", c.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-s.ctx.Done():
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Warn("http shutdown", "err", err)
		}
	}
	return nil
}
