package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/storygraph"
	"github.com/meikuraledutech/storygraph/log"
)

type createNodeBody struct {
	Type storygraph.NodeType `json:"type"`
	X    float64             `json:"x"`
	Y    float64             `json:"y"`
}

func (s *Server) createNode(c fiber.Ctx) error {
	var body createNodeBody
	if err := c.Bind().JSON(&body); err != nil {
		return invalidBody(c)
	}
	n, err := s.session.CreateNode(c.Context(), body.Type, storygraph.Position{X: body.X, Y: body.Y})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}

func (s *Server) getNode(c fiber.Ctx) error {
	n, ok := s.session.Node(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "node not found"})
	}
	return c.JSON(n)
}

func (s *Server) deleteNode(c fiber.Ctx) error {
	if err := s.session.DeleteNode(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// updateData merges the body into node data; null values remove keys.
func (s *Server) updateData(c fiber.Ctx) error {
	var patch map[string]any
	if err := c.Bind().JSON(&patch); err != nil {
		return invalidBody(c)
	}
	n, err := s.session.UpdateData(c.Context(), c.Params("id"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(n)
}

func (s *Server) setOutput(c fiber.Ctx) error {
	var body struct {
		Output *string `json:"output"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return invalidBody(c)
	}
	n, err := s.session.SetOutput(c.Context(), c.Params("id"), body.Output)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(n)
}

func (s *Server) moveNode(c fiber.Ctx) error {
	var pos storygraph.Position
	if err := c.Bind().JSON(&pos); err != nil {
		return invalidBody(c)
	}
	n, err := s.session.Move(c.Context(), c.Params("id"), pos)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(n)
}

func (s *Server) selectImage(c fiber.Ctx) error {
	var body struct {
		Index *int `json:"index"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.Index == nil {
		return invalidBody(c)
	}
	n, err := s.session.SelectImage(c.Context(), c.Params("id"), *body.Index)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(n)
}

// getInput shows what currently flows into one input port of a node.
func (s *Server) getInput(c fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := s.session.Node(id); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "node not found"})
	}
	p, ok := s.session.Resolve(id, storygraph.Port(c.Params("port")))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "port is not connected"})
	}
	return c.JSON(p)
}

// runNode generates the node's output. With ?async=true the node is marked
// running and 202 is returned at once; the result lands in the project
// when the backend call finishes.
func (s *Server) runNode(c fiber.Ctx) error {
	id := c.Params("id")
	d, err := s.session.Start(c.Context(), id)
	if err != nil {
		return s.generationError(c, id, nil, err)
	}

	if c.Query("async") == "true" && s.pool != nil {
		err := s.pool.Submit(func() {
			if _, err := d.Execute(context.Background()); err != nil {
				log.Warnf("async run of %s: %v", id, err)
			}
		})
		if err == nil {
			n, _ := s.session.Node(id)
			return c.Status(fiber.StatusAccepted).JSON(n)
		}
		log.Warnf("worker pool refused %s, running inline: %v", id, err)
	}

	n, err := d.Execute(c.Context())
	if err != nil {
		return s.generationError(c, id, n, err)
	}
	return c.JSON(n)
}

// generationError reports a failed run together with the node, which now
// carries the failure in its error log.
func (s *Server) generationError(c fiber.Ctx, id string, n *storygraph.Node, err error) error {
	if !errors.Is(err, storygraph.ErrGeneration) {
		return writeError(c, err)
	}
	if n == nil {
		n, _ = s.session.Node(id)
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error(), "node": n})
}

func (s *Server) approveNode(c fiber.Ctx) error {
	n, exp, err := s.session.Approve(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"node": n, "expansion": exp})
}

func (s *Server) confirmNode(c fiber.Ctx) error {
	n, exp, err := s.session.Confirm(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"node": n, "expansion": exp})
}

func (s *Server) refreshNode(c fiber.Ctx) error {
	n, reset, err := s.session.Refresh(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if reset == nil {
		reset = []string{}
	}
	return c.JSON(fiber.Map{"node": n, "invalidated": reset})
}
