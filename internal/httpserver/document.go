package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskpilot/internal/service"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

type DocumentHTTP struct {
	Svc *service.DocumentService
}

func (h *DocumentHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "document.list")

	taskID, err := uuidParam(c, l, "taskId")
	if err != nil {
		return err
	}
	docs, err := h.Svc.List(ctx, taskID)
	if err != nil {
		return httpError(l, "list_documents_failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"taskId": taskID, "documents": docs, "count": len(docs)})
}

func (h *DocumentHTTP) Info(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "document.info")

	taskID, err := uuidParam(c, l, "taskId")
	if err != nil {
		return err
	}
	docID, err := uuidParam(c, l, "documentId")
	if err != nil {
		return err
	}
	doc, err := h.Svc.Info(ctx, taskID, docID)
	if err != nil {
		return httpError(l, "document_info_failed", err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *DocumentHTTP) Download(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "document.download")

	taskID, err := uuidParam(c, l, "taskId")
	if err != nil {
		return err
	}
	docID, err := uuidParam(c, l, "documentId")
	if err != nil {
		return err
	}
	link, err := h.Svc.Download(ctx, taskID, docID)
	if err != nil {
		return httpError(l, "download_document_failed", err)
	}
	return c.JSON(http.StatusOK, link)
}
