package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/willowbb/willow/flags"
	"github.com/willowbb/willow/target"
	"github.com/willowbb/willow/users"
)

type XRPCError struct {
	Error string `json:"error"`
}

func httpError(err error) error {
	var code int
	switch {
	case errors.Is(err, flags.ErrAlreadyFlagged):
		code = http.StatusConflict
	case errors.Is(err, flags.ErrNotFound), errors.Is(err, flags.ErrInvalidTarget), errors.Is(err, users.ErrUserNotFound):
		code = http.StatusNotFound
	case errors.Is(err, flags.ErrTargetGone):
		code = http.StatusGone
	case errors.Is(err, flags.ErrUserBanned), errors.Is(err, flags.ErrNotEnoughReputation):
		code = http.StatusForbidden
	case errors.Is(err, flags.ErrInvalidData):
		code = http.StatusBadRequest
	default:
		code = http.StatusInternalServerError
	}
	return echo.NewHTTPError(code, XRPCError{Error: err.Error()})
}

type createFlagRequest struct {
	Type     string `json:"type"`
	TargetID string `json:"targetId"`
	UID      string `json:"uid"`
	Reason   string `json:"reason"`
}

func (srv *Server) handleCreateFlag(c echo.Context) error {
	ctx := c.Request().Context()

	var req createFlagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, XRPCError{Error: "invalid request body"})
	}
	if req.Type == "" || req.TargetID == "" || req.UID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, XRPCError{Error: "type, targetId, and uid are required"})
	}

	kind := target.Kind(req.Type)
	if err := srv.engine.Validate(ctx, flags.Report{Type: kind, ID: req.TargetID, UID: req.UID}); err != nil {
		return httpError(err)
	}

	flag, err := srv.engine.Create(ctx, kind, req.TargetID, req.UID, req.Reason)
	if err != nil {
		return httpError(err)
	}

	// moderator fan-out is best-effort; the flag stands either way
	if err := srv.engine.Notify(ctx, flag, req.UID); err != nil {
		srv.logger.Error("flag notification failed", "flagId", flag.ID, "err", err)
	}

	return c.JSON(http.StatusCreated, flag)
}

// filterDim parses one query param: a comma means a value list, which
// queries as a union rather than an exact match.
func filterDim(raw string) flags.FilterDim {
	if raw == "" {
		return flags.FilterDim{}
	}
	if strings.Contains(raw, ",") {
		return flags.In(strings.Split(raw, ",")...)
	}
	return flags.Eq(raw)
}

func (srv *Server) handleListFlags(c echo.Context) error {
	ctx := c.Request().Context()

	filters := flags.Filters{
		Type:       filterDim(c.QueryParam("type")),
		State:      filterDim(c.QueryParam("state")),
		ReporterID: filterDim(c.QueryParam("reporterId")),
		Assignee:   filterDim(c.QueryParam("assignee")),
		TargetUID:  filterDim(c.QueryParam("targetUid")),
		CID:        filterDim(c.QueryParam("cid")),
		Quick:      c.QueryParam("quick"),
	}

	list, err := srv.engine.List(ctx, filters, c.QueryParam("uid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"flags": list})
}

func (srv *Server) flagID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, XRPCError{Error: "invalid flag id"})
	}
	return id, nil
}

func (srv *Server) handleGetFlag(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := srv.flagID(c)
	if err != nil {
		return err
	}
	flag, err := srv.engine.Get(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if flag == nil {
		return echo.NewHTTPError(http.StatusNotFound, XRPCError{Error: "no such flag"})
	}
	return c.JSON(http.StatusOK, flag)
}

type updateFlagRequest struct {
	UID       string            `json:"uid"`
	Changeset map[string]string `json:"changeset"`
}

func (srv *Server) handleUpdateFlag(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := srv.flagID(c)
	if err != nil {
		return err
	}
	var req updateFlagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, XRPCError{Error: "invalid request body"})
	}
	if req.UID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, XRPCError{Error: "uid is required"})
	}

	if err := srv.engine.Update(ctx, id, req.UID, flags.Changeset(req.Changeset)); err != nil {
		return httpError(err)
	}

	flag, err := srv.engine.Get(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, flag)
}

type appendNoteRequest struct {
	UID     string `json:"uid"`
	Content string `json:"content"`
}

func (srv *Server) handleAppendNote(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := srv.flagID(c)
	if err != nil {
		return err
	}
	var req appendNoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, XRPCError{Error: "invalid request body"})
	}
	if req.UID == "" || req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, XRPCError{Error: "uid and content are required"})
	}

	if err := srv.engine.AppendNote(ctx, id, req.UID, req.Content, 0); err != nil {
		return httpError(err)
	}

	notes, err := srv.engine.GetNotes(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"notes": notes})
}

func (srv *Server) handleGetNotes(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := srv.flagID(c)
	if err != nil {
		return err
	}
	notes, err := srv.engine.GetNotes(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"notes": notes})
}
