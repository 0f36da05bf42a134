package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/internal/service"
	"github.com/Skotchmaster/taskpilot/internal/transport"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

type TaskHTTP struct {
	Svc  *service.TaskService
	Docs *service.DocumentService
}

func (h *TaskHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task.create")

	var req transport.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_task_failed", "invalid body", err)
	}

	in := service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	}
	if req.AssignedTo != nil {
		in.AssignedTo = *req.AssignedTo
	} else if id, ok := authz.FromContext(ctx); ok {
		in.AssignedTo = id.ID
	}

	t, err := h.Svc.Create(ctx, in)
	if err != nil {
		return httpError(l, "create_task_failed", err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TaskHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task.list")

	assignedTo, err := uuidQuery(c, l, "assignedTo")
	if err != nil {
		return err
	}
	res, err := h.Svc.List(ctx, service.TaskQuery{
		PageQuery:  pageQuery(c),
		Status:     c.QueryParam("status"),
		Priority:   c.QueryParam("priority"),
		AssignedTo: assignedTo,
	})
	if err != nil {
		return httpError(l, "list_tasks_failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *TaskHTTP) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task.stats")

	assignedTo, err := uuidQuery(c, l, "assignedTo")
	if err != nil {
		return err
	}
	st, err := h.Svc.Stats(ctx, assignedTo)
	if err != nil {
		return httpError(l, "task_stats_failed", err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *TaskHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task.search")

	q := pageQuery(c)
	if s := c.QueryParam("q"); s != "" {
		q.Search = s
	}
	res, err := h.Svc.Search(ctx, q)
	if err != nil {
		return httpError(l, "search_tasks_failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *TaskHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task.get")

	id, err := uuidParam(c, l, "taskId")
	if err != nil {
		return err
	}
	t, err := h.Svc.Get(ctx, id)
	if err != nil {
		return httpError(l, "get_task_failed", err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TaskHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task.update")

	id, err := uuidParam(c, l, "taskId")
	if err != nil {
		return err
	}
	var req transport.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_task_failed", "invalid body", err)
	}

	t, err := h.Svc.Update(ctx, id, service.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return httpError(l, "update_task_failed", err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TaskHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task.delete")

	id, err := uuidParam(c, l, "taskId")
	if err != nil {
		return err
	}
	if err := h.Svc.Delete(ctx, id); err != nil {
		return httpError(l, "delete_task_failed", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "task deleted"})
}

func (h *TaskHTTP) UploadDocument(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task.upload_document")

	taskID, err := uuidParam(c, l, "taskId")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("document")
	if err != nil {
		return badRequest(l, "upload_document_failed", "document file is required", err)
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(l, "upload_document_failed", "cannot read document", err)
	}
	defer f.Close()

	id, _ := authz.FromContext(ctx)
	t, err := h.Docs.Upload(ctx, taskID, id.ID, *uploadFrom(fh, f))
	if err != nil {
		return httpError(l, "upload_document_failed", err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TaskHTTP) RemoveDocument(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "task.remove_document")

	taskID, err := uuidParam(c, l, "taskId")
	if err != nil {
		return err
	}
	docID, err := uuidParam(c, l, "documentId")
	if err != nil {
		return err
	}
	t, err := h.Docs.Remove(ctx, taskID, docID)
	if err != nil {
		return httpError(l, "remove_document_failed", err)
	}
	return c.JSON(http.StatusOK, t)
}
