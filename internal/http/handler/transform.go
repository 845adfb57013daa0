package handler

import (
	"github.com/gofiber/fiber/v2"

	"sandboxapi/internal/service"
)

// UploadFile handles POST /upload/ (multipart/form-data, field name: file).
// The file lands in the local sandbox dir and the returned path feeds /execute/.
// @Summary Upload a CSV file into the sandbox directory
// @Accept mpfd
// @Success 200 {object} map[string]string
// @Router /upload/ [post]
func UploadFile(svc service.TransformService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		path, err := svc.SaveUpload(c.UserContext(), f, fh.Filename, fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":   "File uploaded successfully",
			"file_path": path,
		})
	}
}

// ExecuteFile handles POST /execute/?file_path=...
// It runs the built-in transform against an uploaded file and returns the
// container's output.
// @Summary Run the transform script against an uploaded file
// @Success 200 {object} map[string]string
// @Router /execute/ [post]
func ExecuteFile(svc service.TransformService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filePath := c.Query("file_path")
		if filePath == "" {
			return writeError(c, fiber.StatusBadRequest, "FILE_PATH_REQUIRED", "file_path is required")
		}

		res, err := svc.Run(c.UserContext(), filePath)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{
			"stdout": res.Stdout,
			"stderr": res.Stderr,
		})
	}
}
