package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/internal/service/chat"
	"github.com/sandevgo/linguabot/internal/service/memory"
	"github.com/sandevgo/linguabot/pkg/log"
)

// Server exposes the chat service over HTTP.
type Server struct {
	app        *fiber.App
	chat       *chat.Service
	listenAddr string
}

func NewServer(ctx context.Context, chatService *chat.Service, listenAddr string) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	// Handlers read the logger from the user context
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(ctx)
		return c.Next()
	})

	s := &Server{
		app:        app,
		chat:       chatService,
		listenAddr: listenAddr,
	}

	app.Get("/", s.handleRoot)
	app.Post("/chat", s.handleChat)
	app.Post("/add-fact", s.handleAddFact)
	app.Post("/debug", s.handleDebug)

	return s
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.listenAddr).Msg("starting HTTP server")
	return s.app.Listen(s.listenAddr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("shutting down HTTP server")
	return s.app.Shutdown()
}

type chatRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
	APIKey   string `json:"api_key"`
	Debug    bool   `json:"debug"`
}

type chatResponse struct {
	Response  string            `json:"response"`
	APIKey    string            `json:"api_key"`
	DebugInfo *memory.DebugInfo `json:"debug_info,omitempty"`
}

type addFactRequest struct {
	APIKey string `json:"api_key"`
	Fact   string `json:"fact"`
}

type debugRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": core.AppName + " API is running. Send POST requests to /chat endpoint.",
		"version": core.AppVersion,
	})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Query cannot be empty")
	}

	reply, err := s.chat.Chat(c.UserContext(), req.APIKey, req.Query, req.Language)
	if err != nil {
		log.FromCtx(c.UserContext()).Error().Err(err).Msg("chat request failed")
		return errorJSON(c, fiber.StatusInternalServerError, "Error processing request: "+err.Error())
	}

	resp := chatResponse{Response: reply.Response, APIKey: reply.Identity}
	if req.Debug {
		if info, err := s.chat.Debug(reply.Identity); err == nil {
			resp.DebugInfo = &info
		}
	}
	return c.JSON(resp)
}

func (s *Server) handleAddFact(c *fiber.Ctx) error {
	var req addFactRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Fact == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Fact is required")
	}

	if err := s.chat.AddFact(c.UserContext(), req.APIKey, req.Fact); err != nil {
		if errors.Is(err, chat.ErrNoSession) {
			return errorJSON(c, fiber.StatusNotFound, "No active session found for this API key")
		}
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "message": "Fact added: " + req.Fact})
}

func (s *Server) handleDebug(c *fiber.Ctx) error {
	var req debugRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	info, err := s.chat.Debug(req.APIKey)
	if err != nil {
		if errors.Is(err, chat.ErrNoSession) {
			return errorJSON(c, fiber.StatusNotFound, "No active session found for this API key")
		}
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(info)
}

func errorJSON(c *fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(fiber.Map{"detail": detail})
}
