// Package server exposes a storygraph session over HTTP.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/panjf2000/ants/v2"

	"github.com/meikuraledutech/storygraph"
	"github.com/meikuraledutech/storygraph/log"
	"github.com/meikuraledutech/storygraph/media"
)

// Server routes requests to one project session.
type Server struct {
	app     *fiber.App
	session *storygraph.Session
	media   *media.Store
	pool    *ants.Pool
}

// New builds the fiber app. Asynchronous runs are executed on pool; a nil
// pool makes every run synchronous.
func New(session *storygraph.Session, m *media.Store, pool *ants.Pool) *Server {
	s := &Server{
		app:     fiber.New(fiber.Config{AppName: "storygraph", BodyLimit: 64 << 20}),
		session: session,
		media:   m,
		pool:    pool,
	}
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until the app is shut down.
func (s *Server) Listen(addr string) error {
	log.Infof("serving project %s on %s", s.session.Name(), addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops the listener.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) routes() {
	api := s.app.Group("/api")

	// ── Project ───────────────────────────────────────────────────────
	api.Get("/state", s.getState)
	api.Put("/state", s.putState)
	api.Delete("/state", s.clearState)
	api.Get("/settings", s.getSettings)
	api.Put("/settings", s.putSettings)

	// ── Nodes ─────────────────────────────────────────────────────────
	api.Post("/nodes", s.createNode)
	api.Get("/nodes/:id", s.getNode)
	api.Delete("/nodes/:id", s.deleteNode)
	api.Patch("/nodes/:id/data", s.updateData)
	api.Put("/nodes/:id/output", s.setOutput)
	api.Put("/nodes/:id/position", s.moveNode)
	api.Put("/nodes/:id/selected-image", s.selectImage)
	api.Get("/nodes/:id/inputs/:port", s.getInput)

	// ── Node actions ──────────────────────────────────────────────────
	api.Post("/nodes/:id/run", s.runNode)
	api.Post("/nodes/:id/approve", s.approveNode)
	api.Post("/nodes/:id/confirm", s.confirmNode)
	api.Post("/nodes/:id/refresh", s.refreshNode)

	// ── Edges ─────────────────────────────────────────────────────────
	api.Get("/edges", s.listEdges)
	api.Post("/edges", s.createEdge)
	api.Delete("/edges/:id", s.deleteEdge)

	// ── Files ─────────────────────────────────────────────────────────
	api.Post("/upload", s.upload)
	api.Get("/file/:name", s.serveFile)
	api.Post("/read_doc", s.readDoc)
}

// statusOf maps engine errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, storygraph.ErrNodeNotFound),
		errors.Is(err, storygraph.ErrEdgeNotFound),
		errors.Is(err, media.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, storygraph.ErrIllegalTransition),
		errors.Is(err, storygraph.ErrAlreadyRunning),
		errors.Is(err, storygraph.ErrSuperseded):
		return fiber.StatusConflict
	case errors.Is(err, storygraph.ErrGeneration):
		return fiber.StatusBadGateway
	case errors.Is(err, storygraph.ErrInvalidArgument),
		errors.Is(err, storygraph.ErrUnknownNodeType),
		errors.Is(err, storygraph.ErrNoGenerator),
		errors.Is(err, media.ErrInvalidName),
		errors.Is(err, media.ErrUnsupportedFormat):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func writeError(c fiber.Ctx, err error) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func invalidBody(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
}
