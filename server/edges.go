package server

import (
	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/storygraph"
)

func (s *Server) listEdges(c fiber.Ctx) error {
	return c.JSON(s.session.Edges())
}

// createEdge answers 200 {"created": false} when the graph refuses the
// edge; a refusal is not an error.
func (s *Server) createEdge(c fiber.Ctx) error {
	var body storygraph.Edge
	if err := c.Bind().JSON(&body); err != nil {
		return invalidBody(c)
	}
	e, ok, err := s.session.CreateEdge(c.Context(), body.Source, body.Target, body.SrcPort, body.DstPort)
	if err != nil {
		return writeError(c, err)
	}
	if !ok {
		return c.JSON(fiber.Map{"created": false})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"created": true, "edge": e})
}

func (s *Server) deleteEdge(c fiber.Ctx) error {
	if err := s.session.DeleteEdge(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
