package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/driveindex/config"
	"github.com/meghashyamc/driveindex/db/kvdb"
	"github.com/meghashyamc/driveindex/db/searchdb"
	"github.com/meghashyamc/driveindex/logger"
	"github.com/meghashyamc/driveindex/services/index"
	"github.com/meghashyamc/driveindex/services/progress"
	"github.com/meghashyamc/driveindex/validation"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	cfg          *config.Config
	router       *gin.Engine
	httpServer   *http.Server
	kvdb         kvdb.DB
	searchdb     searchdb.DB
	broker       *progress.Broker
	indexService *index.Service
	validator    *validation.Validator
	logger       logger.Logger
}

// Run serves the indexing backend until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger.New(),
	}
	if err := s.setupDependencies(ctx); err != nil {
		s.closeDependencies()
		return err
	}
	s.setupRouter()

	errC := make(chan error, 1)
	s.setupHTTPServer(errC)
	s.buildOnStartup()

	select {
	case err := <-errC:
		cancel()
		s.closeDependencies()
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *server) setupDependencies(ctx context.Context) error {
	boltDB, err := kvdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}
	s.kvdb = boltDB
	bleveDB, err := searchdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating searchDB", "err", err.Error())
		return err
	}
	s.searchdb = bleveDB
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	s.broker = progress.New(s.logger)
	s.indexService, err = index.New(ctx, s.logger, s.searchdb, s.kvdb, s.broker, index.Options{
		Drives:       s.cfg.GetDrives(),
		ExcludedDirs: s.cfg.GetExcludedDirs(),
		StatusEvery:  s.cfg.GetStatusEvery(),
	})
	if err != nil {
		s.logger.Error("error creating index service", "err", err.Error())
		return err
	}

	return nil

}

func (s *server) setupRouter() {
	router := newRouter(s.logger)
	setupRoutes(router, s.logger, s.indexService, s.searchdb, s.validator)

	s.router = router
}

func (s *server) setupHTTPServer(errC chan<- error) {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		s.logger.Info("http server listening", "addr", httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "err", err.Error())
			errC <- fmt.Errorf("listen: %w", err)
		}
	}()
}

func (s *server) buildOnStartup() {
	if !s.cfg.GetBuildOnStartup() {
		return
	}
	if _, err := s.indexService.Build(nil); err != nil {
		s.logger.Warn("could not start indexing on startup", "err", err.Error())
	}
}

func (s *server) shutdown() error {
	s.logger.Info("starting to shut down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Open progress streams only end once their subscriptions are released.
	s.broker.Close()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.closeDependencies()
	if err != nil {
		s.logger.Error("error shutting down http server", "err", err.Error())
		return err
	}
	s.logger.Info("shut down http server successfully")
	return nil
}

func (s *server) closeDependencies() {
	if s.broker != nil {
		s.broker.Close()
	}
	s.waitForIndexService()
	if s.searchdb != nil {
		s.searchdb.Close()
	}
	if s.kvdb != nil {
		s.kvdb.Close()
	}
}

// waitForIndexService lets a run that is still writing its snapshot return
// before the stores close. The build loop stops once Run's context is done.
func (s *server) waitForIndexService() {
	if s.indexService == nil {
		return
	}
	select {
	case <-s.indexService.Done():
	case <-time.After(shutdownTimeout):
		s.logger.Warn("index service did not stop in time, closing stores anyway")
	}
}
