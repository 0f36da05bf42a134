package httpserver

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskpilot/internal/authz"
	"github.com/Skotchmaster/taskpilot/internal/service"
	"github.com/Skotchmaster/taskpilot/internal/transport"
	"github.com/Skotchmaster/taskpilot/pkg/cookies"
	"github.com/Skotchmaster/taskpilot/pkg/logging"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies cookies.Jar
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register_failed", "invalid body", err)
	}

	in := service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Role:     req.Role,
	}

	fh, err := c.FormFile("avatar")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return badRequest(l, "register_failed", "cannot read avatar", err)
		}
		defer f.Close()
		in.Avatar = uploadFrom(fh, f)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return badRequest(l, "register_failed", "invalid multipart body", err)
	}

	u, err := h.Svc.Register(ctx, in)
	if err != nil {
		return httpError(l, "register_failed", err)
	}
	l.Info("register_successful", "user_id", u.ID.String())
	return c.JSON(http.StatusCreated, u)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_failed", "invalid body", err)
	}

	sess, err := h.Svc.Login(ctx, req.Identifier(), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			err = errors.Join(service.ErrInvalidCredentials, err)
		}
		return httpError(l, "login_failed", err)
	}

	h.setSession(c, sess)
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

// Refresh takes the refresh token from its cookie, or from the JSON body for
// clients that do not keep cookies.
func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	var presented string
	if ck, err := c.Cookie(cookies.RefreshToken); err == nil {
		presented = ck.Value
	}
	if presented == "" {
		var req transport.RefreshRequest
		if err := c.Bind(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	sess, err := h.Svc.Refresh(ctx, presented)
	if err != nil {
		// A stale token lost a race to a refresh that already set new
		// cookies on this client; deleting them here would end that session.
		if errors.Is(err, service.ErrUnauthorized) {
			h.clearSession(c)
		}
		return httpError(l, "refresh_failed", err)
	}

	h.setSession(c, sess)
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	id, ok := authz.FromContext(ctx)
	if !ok {
		return echo.ErrUnauthorized
	}
	if err := h.Svc.Logout(ctx, id.ID); err != nil {
		h.clearSession(c)
		return httpError(l, "logout_failed", err)
	}

	h.clearSession(c)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "logged out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.me")

	u, err := h.Svc.Me(ctx)
	if err != nil {
		return httpError(l, "me_failed", err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AuthHTTP) setSession(c echo.Context, s *service.Session) {
	c.SetCookie(h.Cookies.Create(cookies.AccessToken, s.AccessToken, s.AccessExp))
	c.SetCookie(h.Cookies.Create(cookies.RefreshToken, s.RefreshToken, s.RefreshExp))
}

func (h *AuthHTTP) clearSession(c echo.Context) {
	c.SetCookie(h.Cookies.Delete(cookies.AccessToken))
	c.SetCookie(h.Cookies.Delete(cookies.RefreshToken))
}

func sessionResponse(s *service.Session) transport.SessionResponse {
	return transport.SessionResponse{
		User:         s.User,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		AccessExp:    s.AccessExp,
		RefreshExp:   s.RefreshExp,
	}
}

func uploadFrom(fh *multipart.FileHeader, f multipart.File) *service.Upload {
	return &service.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}
}
