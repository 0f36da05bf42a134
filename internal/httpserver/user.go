package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskpilot/internal/service"
	"github.com/Skotchmaster/taskpilot/internal/transport"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
	"github.com/Skotchmaster/taskpilot/pkg/util"
)

type UserHTTP struct {
	Svc *service.UserService
}

func pageQuery(c echo.Context) service.PageQuery {
	return service.PageQuery{
		Page:      util.ParseIntDefault(c.QueryParam("page"), 1),
		Limit:     util.ParseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
		Search:    c.QueryParam("search"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
	}
}

func (h *UserHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.list")

	res, err := h.Svc.List(ctx, pageQuery(c))
	if err != nil {
		return httpError(l, "list_users_failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *UserHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.get")

	id, err := uuidParam(c, l, "userId")
	if err != nil {
		return err
	}
	u, err := h.Svc.Get(ctx, id)
	if err != nil {
		return httpError(l, "get_user_failed", err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update")

	id, err := uuidParam(c, l, "userId")
	if err != nil {
		return err
	}
	var req transport.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_user_failed", "invalid body", err)
	}

	u, err := h.Svc.Update(ctx, id, service.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		return httpError(l, "update_user_failed", err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.delete")

	id, err := uuidParam(c, l, "userId")
	if err != nil {
		return err
	}
	if err := h.Svc.Delete(ctx, id); err != nil {
		return httpError(l, "delete_user_failed", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "user deleted"})
}
