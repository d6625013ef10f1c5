package server

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/storygraph"
	"github.com/meikuraledutech/storygraph/media"
)

// upload stores every file sent under the "file" or "files" form fields.
func (s *Server) upload(c fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return invalidBody(c)
	}
	headers := append(form.File["file"], form.File["files"]...)
	if len(headers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no file in request"})
	}

	refs := make([]storygraph.FileRef, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fmt.Errorf("open upload %s: %w", fh.Filename, err))
		}
		ref, err := s.media.Upload(f, fh.Filename)
		f.Close()
		if err != nil {
			return writeError(c, err)
		}
		refs = append(refs, ref)
	}
	return c.Status(fiber.StatusCreated).JSON(refs)
}

func (s *Server) serveFile(c fiber.Ctx) error {
	path, err := s.media.Path(c.Params("name"))
	if err != nil {
		return writeError(c, err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
	}
	return c.SendFile(path)
}

type readDocBody struct {
	Files      []storygraph.FileRef `json:"files"`
	ServerName string               `json:"serverName"`
}

// readDoc returns the text of uploaded documents.
func (s *Server) readDoc(c fiber.Ctx) error {
	var body readDocBody
	if err := c.Bind().JSON(&body); err != nil {
		return invalidBody(c)
	}
	files := body.Files
	if body.ServerName != "" {
		files = append(files, storygraph.FileRef{ServerName: body.ServerName})
	}
	if len(files) == 0 {
		return invalidBody(c)
	}
	text, err := s.media.ReadText(c.Context(), files)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"text": text})
}

var _ storygraph.DocReader = (*media.Store)(nil)
