package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/rajjagirdar007/platemateuh/app/service/location"
	"github.com/rajjagirdar007/platemateuh/app/service/session"
	"github.com/rajjagirdar007/platemateuh/app/service/speech"
	"github.com/rajjagirdar007/platemateuh/app/service/store"
	"github.com/samber/do"
)

// Server is the REST surface the presentation layer talks to. It only reads
// state and forwards commands; all orchestration lives in the services.
type Server struct {
	appCtx      context.Context
	cfg         *config.Config
	app         *fiber.App
	sessionSvc  *session.Service
	speechSvc   *speech.Service
	locationSvc *location.Service
	storeSvc    *store.Service
}

func New(di *do.Injector) (*Server, error) {
	s := &Server{
		appCtx:      do.MustInvoke[context.Context](di),
		cfg:         do.MustInvoke[*config.Config](di),
		sessionSvc:  do.MustInvoke[*session.Service](di),
		speechSvc:   do.MustInvoke[*speech.Service](di),
		locationSvc: do.MustInvoke[*location.Service](di),
		storeSvc:    do.MustInvoke[*store.Service](di),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api")

	api.Get("/session", s.handleSessionStatus)
	api.Post("/session/connect", s.handleConnect)
	api.Post("/session/disconnect", s.handleDisconnect)

	api.Get("/messages", s.handleListMessages)
	api.Post("/messages", s.handleSubmitMessage)

	api.Post("/voice/start", s.handleVoiceStart)
	api.Post("/voice/stop", s.handleVoiceStop)
	api.Get("/voice", s.handleVoiceStatus)

	api.Get("/location", s.handleLocation)
	api.Post("/location/permission", s.handleLocationPermission)

	api.Get("/recent", s.handleRecentSearches)

	api.Get("/favorites", s.handleListFavorites)
	api.Post("/favorites", s.handleAddFavorite)
	api.Delete("/favorites/:id", s.handleRemoveFavorite)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			slog.Warn("http server shutdown failed", "error", err)
		}
	}()

	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) handleSessionStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"state":      s.sessionSvc.State().String(),
		"processing": s.sessionSvc.Processing(),
	})
}

func (s *Server) handleConnect(c *fiber.Ctx) error {
	if err := s.sessionSvc.Connect(s.appCtx); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	return c.JSON(fiber.Map{"state": s.sessionSvc.State().String()})
}

func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	s.sessionSvc.Disconnect()

	return c.JSON(fiber.Map{"state": s.sessionSvc.State().String()})
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	return c.JSON(s.sessionSvc.History())
}

func (s *Server) handleSubmitMessage(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	if err := s.sessionSvc.SubmitUserText(req.Text); err != nil {
		switch {
		case errors.Is(err, session.ErrNotConnected):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, session.ErrEmptyInput):
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, session.ErrProcessing):
			return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
		default:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleVoiceStart(c *fiber.Ctx) error {
	// Capture outlives the request; tie it to the app context.
	if err := s.speechSvc.StartListening(s.appCtx); err != nil {
		switch {
		case errors.Is(err, speech.ErrVoiceInputDisabled):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, speech.ErrPermissionDenied):
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		default:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(fiber.Map{"state": s.speechSvc.State().String()})
}

func (s *Server) handleVoiceStop(c *fiber.Ctx) error {
	s.speechSvc.StopListening()

	return c.JSON(fiber.Map{"state": s.speechSvc.State().String()})
}

func (s *Server) handleVoiceStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"state":         s.speechSvc.State().String(),
		"transcription": s.speechSvc.CurrentTranscription(),
	})
}

func (s *Server) handleLocation(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status": s.locationSvc.Status().String(),
		"place":  s.locationSvc.PlaceName(),
	}

	if fix, ok := s.locationSvc.CurrentFix(); ok {
		resp["fix"] = fiber.Map{
			"latitude":  fix.Latitude,
			"longitude": fix.Longitude,
			"accuracy":  fix.Accuracy,
			"timestamp": fix.Timestamp,
		}
	}

	return c.JSON(resp)
}

func (s *Server) handleLocationPermission(c *fiber.Ctx) error {
	s.locationSvc.RequestPermission(s.appCtx)

	return c.JSON(fiber.Map{"status": s.locationSvc.Status().String()})
}

func (s *Server) handleRecentSearches(c *fiber.Ctx) error {
	recents, err := s.storeSvc.RecentSearches()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(recents)
}

func (s *Server) handleListFavorites(c *fiber.Ctx) error {
	favorites, err := s.storeSvc.Favorites()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(favorites)
}

func (s *Server) handleAddFavorite(c *fiber.Ctx) error {
	var fav store.Favorite
	if err := c.BodyParser(&fav); err != nil || fav.ID == "" || fav.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "favorite requires id and name")
	}

	if err := s.storeSvc.AddFavorite(fav); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) handleRemoveFavorite(c *fiber.Ctx) error {
	if err := s.storeSvc.RemoveFavorite(c.Params("id")); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.SendStatus(fiber.StatusNoContent)
}
