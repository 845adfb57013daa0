package handler

import (
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"sandboxapi/internal/sandbox"
	"sandboxapi/internal/service"
)

// submitCodeRequest is the payload for submitting processing code to a job.
type submitCodeRequest struct {
	Code string `json:"code"`
}

func (r submitCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(1, sandbox.MaxCodeSize)),
	)
}

// CreateJob handles POST /jobs (multipart/form-data, field name: file).
// @Summary Upload a CSV or Excel file for processing
// @Accept mpfd
// @Success 201 {object} model.Job
// @Router /jobs [post]
func CreateJob(svc service.JobService) fiber.Handler {
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

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		job, err := svc.Upload(c.UserContext(), f, fh.Filename, ct, fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(job)
	}
}

// SubmitCode handles POST /jobs/:id/code.
// @Summary Submit Python code to process the uploaded file
// @Accept json
// @Success 202 {object} model.Job
// @Router /jobs/{id}/code [post]
func SubmitCode(svc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var req submitCodeRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if err := req.Validate(); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CODE", err.Error())
		}

		job, err := svc.SubmitCode(c.UserContext(), id, req.Code)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(job)
	}
}

// GetJob handles GET /jobs/:id.
func GetJob(svc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		job, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(job)
	}
}

// ListJobs handles GET /jobs with limit & offset.
func ListJobs(svc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limitStr := c.Query("limit", "10")
		offsetStr := c.Query("offset", "0")
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// JobResults handles GET /jobs/:id/results?format=json|csv|excel.
// With presign=true it returns a time-limited download URL instead of streaming.
func JobResults(svc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		format := c.Query("format", "json")

		if c.QueryBool("presign") {
			url, err := svc.PresignResult(c.UserContext(), id, format)
			if err != nil {
				return writeServiceError(c, err)
			}
			return c.JSON(fiber.Map{"url": url})
		}

		art, err := svc.Results(c.UserContext(), id, format)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, art.ContentType)
		if art.ContentType != "application/json" {
			c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+art.Filename+`"`)
		}
		return c.SendStream(art.Body, int(art.Size))
	}
}

// DeleteJob handles DELETE /jobs/:id.
func DeleteJob(svc service.JobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "job " + id + " cleaned up successfully"})
	}
}

// CodeTemplate handles GET /template.
func CodeTemplate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"template": service.CodeTemplate})
	}
}
