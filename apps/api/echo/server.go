package echoapi

import (
	"context"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/tujenge/kazipro/core"
	"github.com/tujenge/kazipro/core/project"
	"github.com/tujenge/kazipro/core/reservation"
	"github.com/tujenge/kazipro/core/user"
)

type (
	// Deps are the services the API serves.
	Deps struct {
		Logger         core.Logger
		UserSvc        *user.Service
		ProjectSvc     *project.Service
		ReservationSvc *reservation.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		addr     string
		shutdown chan os.Signal
		deps     *Deps
		app      *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(addr string, shutdown chan os.Signal, deps *Deps) Server {
	s := &server{
		addr:     addr,
		shutdown: shutdown,
		deps:     deps,
		app:      echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	debug := core.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !core.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.deps.UserSvc)
	registerProjectAPI(v1, jwt, s.deps.ProjectSvc, s.deps.ReservationSvc, s.deps.UserSvc)
	registerReservationAPI(v1, jwt, s.deps.ReservationSvc, s.deps.UserSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// signalShutdown sends a SIGTERM to initiate a graceful shutdown
// when an integrity issue is caught.
func (s *server) signalShutdown() {
	if s.shutdown != nil {
		s.shutdown <- os.Interrupt
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Kazipro API!")
}
