// Package server exposes the chamber's command surface over HTTP. It is
// deployment glue: thin JSON handlers calling into the control loop and the
// actuator coordinator, with no control logic of its own.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/actuators"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/audit"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/controlloop"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/pkg/config"
)

// Controller represents the HTTP command/status server
type Controller struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	config      config.HTTPData
	Server      http.Server
	loop        *controlloop.Loop
	coordinator *actuators.Coordinator
	auditLog    *audit.Log
	logger      *zap.SugaredLogger
	handlers    *Handlers
}

// NewController creates the HTTP controller.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg config.HTTPData, loop *controlloop.Loop, coord *actuators.Coordinator, auditLog *audit.Log, logger *zap.SugaredLogger) (*Controller, error) {
	if cfg.ListenAddr == "" {
		return nil, errors.New("HTTP server requires a listen_addr")
	}

	ctrl := &Controller{
		ctx:         ctx,
		wg:          wg,
		config:      cfg,
		loop:        loop,
		coordinator: coord,
		auditLog:    auditLog,
		logger:      logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	router := mux.NewRouter()
	router.HandleFunc("/status", ctrl.handlers.GetStatus).Methods(http.MethodGet)
	router.HandleFunc("/decisions", ctrl.handlers.GetDecisions).Methods(http.MethodGet)
	router.HandleFunc("/automation", ctrl.handlers.SetAutomation).Methods(http.MethodPost)
	router.HandleFunc("/phase", ctrl.handlers.SetPhase).Methods(http.MethodPost)
	router.HandleFunc("/phase", ctrl.handlers.ClearPhase).Methods(http.MethodDelete)
	router.HandleFunc("/actuators/{name}", ctrl.handlers.SetActuator).Methods(http.MethodPost)

	ctrl.Server = http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return ctrl, nil
}

// Start launches the HTTP listener and shuts it down when the context ends.
func (c *Controller) Start() error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Infof("HTTP command surface listening on %s", c.config.ListenAddr)
		if err := c.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Errorf("HTTP server error: %v", err)
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-c.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}
