package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
}

func NewAPIServer(listenAddress string) *APIServer {
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:               "ktu-notes-scraper",
			DisableStartupMessage: true,
		}),
		listenAddress: listenAddress,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled, then shuts the server down
func (s *APIServer) Run(ctx context.Context) error {
	log.Infof("Starting status server on %s", s.listenAddress)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.listenAddress)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutting down status server")
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		return <-errCh
	}
}
