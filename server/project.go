package server

import (
	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/storygraph"
)

func (s *Server) getState(c fiber.Ctx) error {
	return c.JSON(s.session.Project())
}

// putState replaces the whole project, as on an import.
func (s *Server) putState(c fiber.Ctx) error {
	var p storygraph.Project
	if err := c.Bind().JSON(&p); err != nil {
		return invalidBody(c)
	}
	if err := s.session.Replace(c.Context(), &p); err != nil {
		return writeError(c, err)
	}
	return c.JSON(s.session.Project())
}

func (s *Server) clearState(c fiber.Ctx) error {
	if err := s.session.Clear(c.Context()); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) getSettings(c fiber.Ctx) error {
	return c.JSON(s.session.Settings())
}

func (s *Server) putSettings(c fiber.Ctx) error {
	var settings storygraph.Settings
	if err := c.Bind().JSON(&settings); err != nil {
		return invalidBody(c)
	}
	if err := s.session.ReplaceSettings(c.Context(), settings); err != nil {
		return writeError(c, err)
	}
	return c.JSON(s.session.Settings())
}
