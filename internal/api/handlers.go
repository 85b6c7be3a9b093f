package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/project"
)

// Handlers holds dependencies for the project API handlers.
type Handlers struct {
	store  *project.Store
	logger zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *project.Store, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		logger: logger.With().Str("component", "api.handlers").Logger(),
	}
}

// respondError maps engine errors onto transport status codes. Taxonomy
// sentinels win over the storage error type because adapter misses wrap
// ErrNotFound; a bare StorageError is a real backend failure.
func (h *Handlers) respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, perrors.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", err.Error())
	case errors.Is(err, perrors.ErrAlreadyExists):
		return problemResponse(c, fiber.StatusConflict,
			"already_exists", "Conflict", err.Error())
	case errors.Is(err, perrors.ErrProtectedBranch):
		return problemResponse(c, fiber.StatusForbidden,
			"protected_branch", "Forbidden", err.Error())
	case errors.Is(err, perrors.ErrMergeConflict):
		return problemResponse(c, fiber.StatusConflict,
			"merge_conflict", "Conflict", err.Error())
	case errors.Is(err, perrors.ErrInvalidOperation):
		return problemResponse(c, fiber.StatusUnprocessableEntity,
			"invalid_operation", "Unprocessable Entity", err.Error())
	}

	var se *perrors.StorageError
	if errors.As(err, &se) {
		if perrors.IsRetryable(err) {
			c.Set("X-Retryable", "true")
		}
		h.logger.Error().Err(err).Str("backend", se.Backend).Str("op", se.Op).Msg("Storage failure")
		return problemResponse(c, fiber.StatusBadGateway,
			"storage_unavailable", "Bad Gateway", "Storage backend failure")
	}

	h.logger.Error().Err(err).Str("path", c.Path()).Msg("Unhandled handler error")
	return problemResponse(c, fiber.StatusInternalServerError,
		"internal_error", "Internal Server Error", "An internal error occurred")
}

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req project.CreateProjectInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.OwnerID == "" {
		req.OwnerID = actorFrom(c)
	}

	p, err := h.store.CreateProject(c.Context(), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	filter := project.ListProjectsFilter{
		OwnerID: c.Query("owner_id"),
		Type:    c.Query("type"),
	}
	summaries, err := h.store.ListProjects(c.Context(), filter)
	if err != nil {
		return h.respondError(c, err)
	}
	if summaries == nil {
		summaries = []*project.ProjectSummary{}
	}
	return c.JSON(fiber.Map{"projects": summaries, "total": len(summaries)})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	p, err := h.store.GetProject(c.Context(), c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return respondCached(c, p)
}

// UpdateProject handles PATCH /api/v1/projects/:id.
func (h *Handlers) UpdateProject(c *fiber.Ctx) error {
	var req project.UpdateProjectInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	p, err := h.store.UpdateProject(c.Context(), c.Params("id"), actorFrom(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(p)
}

// DeleteProject handles DELETE /api/v1/projects/:id.
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	if err := h.store.DeleteProject(c.Context(), c.Params("id"), actorFrom(c)); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateFile handles POST /api/v1/projects/:id/files.
func (h *Handlers) CreateFile(c *fiber.Ctx) error {
	var req project.CreateFileInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	f, err := h.store.CreateFile(c.Context(), c.Params("id"), actorFrom(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(f)
}

// GetFile handles GET /api/v1/projects/:id/files/*.
func (h *Handlers) GetFile(c *fiber.Ctx) error {
	f, err := h.store.GetFile(c.Context(), c.Params("id"), c.Params("*"))
	if err != nil {
		return h.respondError(c, err)
	}
	return respondCached(c, f)
}

// UpdateFile handles PUT /api/v1/projects/:id/files/*.
func (h *Handlers) UpdateFile(c *fiber.Ctx) error {
	var req project.UpdateFileInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	f, err := h.store.UpdateFile(c.Context(), c.Params("id"), c.Params("*"), actorFrom(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(f)
}

// DeleteFile handles DELETE /api/v1/projects/:id/files/*.
func (h *Handlers) DeleteFile(c *fiber.Ctx) error {
	if err := h.store.DeleteFile(c.Context(), c.Params("id"), c.Params("*"), actorFrom(c)); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateVersion handles POST /api/v1/projects/:id/versions.
func (h *Handlers) CreateVersion(c *fiber.Ctx) error {
	var req project.CreateVersionInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	v, err := h.store.CreateVersion(c.Context(), c.Params("id"), actorFrom(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

// ListVersions handles GET /api/v1/projects/:id/versions.
func (h *Handlers) ListVersions(c *fiber.Ctx) error {
	versions, err := h.store.ListVersions(c.Context(), c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	if versions == nil {
		versions = []*models.ProjectVersion{}
	}
	return c.JSON(fiber.Map{"versions": versions, "total": len(versions)})
}

// RevertVersion handles POST /api/v1/projects/:id/versions/:versionID/revert.
func (h *Handlers) RevertVersion(c *fiber.Ctx) error {
	v, err := h.store.RevertToVersion(c.Context(), c.Params("id"), c.Params("versionID"), actorFrom(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(v)
}

// CreateBranch handles POST /api/v1/projects/:id/branches.
func (h *Handlers) CreateBranch(c *fiber.Ctx) error {
	var req project.CreateBranchInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	b, err := h.store.CreateBranch(c.Context(), c.Params("id"), actorFrom(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

// ListBranches handles GET /api/v1/projects/:id/branches.
func (h *Handlers) ListBranches(c *fiber.Ctx) error {
	branches, err := h.store.ListBranches(c.Context(), c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	if branches == nil {
		branches = []*models.ProjectBranch{}
	}
	return c.JSON(fiber.Map{"branches": branches, "total": len(branches)})
}

// SwitchBranchRequest names the branch to make current.
type SwitchBranchRequest struct {
	Branch string `json:"branch"`
}

// SwitchBranch handles POST /api/v1/projects/:id/branches/switch.
func (h *Handlers) SwitchBranch(c *fiber.Ctx) error {
	var req SwitchBranchRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.Branch == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_branch", "Bad Request", "Branch name is required")
	}

	p, err := h.store.SwitchBranch(c.Context(), c.Params("id"), actorFrom(c), req.Branch)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(p)
}

// MergeBranchRequest names the source and target of a merge.
type MergeBranchRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// MergeBranch handles POST /api/v1/projects/:id/branches/merge. A
// conflicted merge is not a failure at the engine level, but the caller
// gets 409 so IDE panels can branch on the status code alone.
func (h *Handlers) MergeBranch(c *fiber.Ctx) error {
	var req MergeBranchRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.Source == "" || req.Target == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_branch", "Bad Request", "Source and target branches are required")
	}

	res, err := h.store.MergeBranch(c.Context(), c.Params("id"), actorFrom(c), req.Source, req.Target)
	if err != nil {
		return h.respondError(c, err)
	}
	if res.Status == models.MergeConflicted {
		return c.Status(fiber.StatusConflict).JSON(res)
	}
	return c.JSON(res)
}

// AddCollaborator handles POST /api/v1/projects/:id/collaborators.
func (h *Handlers) AddCollaborator(c *fiber.Ctx) error {
	var req project.AddCollaboratorInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	col, err := h.store.AddCollaborator(c.Context(), c.Params("id"), actorFrom(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(col)
}

// RemoveCollaborator handles DELETE /api/v1/projects/:id/collaborators/:userID.
func (h *Handlers) RemoveCollaborator(c *fiber.Ctx) error {
	if err := h.store.RemoveCollaborator(c.Context(), c.Params("id"), actorFrom(c), c.Params("userID")); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateCollaboratorRequest carries the new role.
type UpdateCollaboratorRequest struct {
	Role models.Role `json:"role"`
}

// UpdateCollaborator handles PATCH /api/v1/projects/:id/collaborators/:userID.
func (h *Handlers) UpdateCollaborator(c *fiber.Ctx) error {
	var req UpdateCollaboratorRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	col, err := h.store.UpdateCollaboratorRole(c.Context(), c.Params("id"), actorFrom(c), c.Params("userID"), req.Role)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(col)
}

// ExportProject handles POST /api/v1/projects/:id/export.
func (h *Handlers) ExportProject(c *fiber.Ctx) error {
	var opts models.ExportOptions
	if err := c.BodyParser(&opts); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if opts.ExportedBy == "" {
		opts.ExportedBy = actorFrom(c)
	}

	exp, err := h.store.Export(c.Context(), c.Params("id"), opts)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(exp)
}

// ImportRequest carries an inline export payload plus replay options.
type ImportRequest struct {
	Export  *models.ProjectExport `json:"export"`
	Options models.ImportOptions  `json:"options"`
}

// ImportProject handles POST /api/v1/projects/import.
func (h *Handlers) ImportProject(c *fiber.Ctx) error {
	var req ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.Options.NewOwnerID == "" && req.Export != nil && req.Export.Project != nil && req.Export.Project.OwnerID == "" {
		req.Options.NewOwnerID = actorFrom(c)
	}

	p, err := h.store.Import(c.Context(), req.Export, req.Options)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
