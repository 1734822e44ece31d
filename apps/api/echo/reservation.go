package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tujenge/kazipro/core"
	"github.com/tujenge/kazipro/core/reservation"
	"github.com/tujenge/kazipro/core/user"
)

type (
	reservationAPI struct {
		svc    *reservation.Service
		usrSvc *user.Service
	}

	// ReserveRequest is the JSON body expected when a student claims a project.
	ReserveRequest struct {
		ProjectID    string `json:"project_id" validate:"required"`
		SupervisorID string `json:"supervisor_id" validate:"required"`
	}

	// RejectRequest carries the optional feedback recorded on rejection.
	RejectRequest struct {
		Feedback string `json:"feedback"`
	}
)

func registerReservationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *reservation.Service, usrSvc *user.Service) {
	api := reservationAPI{svc: svc, usrSvc: usrSvc}

	rg := g.Group("/reservations", jwt)
	rg.POST("", api.reserve, requireCapability(user.CanReserveProject))
	rg.GET("", api.query)
	rg.GET("/watch", api.watch)
	rg.GET("/:id", api.retrieve)
	rg.PUT("/:id/approve", api.approve)
	rg.PUT("/:id/reject", api.reject)
}

func (api *reservationAPI) reserve(ctx echo.Context) error {
	data := new(ReserveRequest)
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Reserve(ctx.Request().Context(), actor, data.ProjectID, data.SupervisorID)
	if err != nil {
		return errors.Wrap(err, "reserving project")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *reservationAPI) query(ctx echo.Context) error {
	filter := new(reservation.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding filter")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reservations, err := api.svc.Filter(ctx.Request().Context(), actor, *filter)
	if err != nil {
		return errors.Wrap(err, "querying reservations")
	}
	return ctx.JSON(http.StatusOK, reservations)
}

func (api *reservationAPI) retrieve(ctx echo.Context) error {
	res, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding reservation by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.Subject != res.StudentID && claims.Subject != res.SupervisorID &&
		!claims.Can(user.CanViewAllReservations) {
		return errHttpForbidden
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *reservationAPI) approve(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Approve(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving reservation")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *reservationAPI) reject(ctx echo.Context) error {
	data := new(RejectRequest)
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Reject(ctx.Request().Context(), actor, ctx.Param("id"), data.Feedback)
	if err != nil {
		return errors.Wrap(err, "rejecting reservation")
	}
	return ctx.JSON(http.StatusOK, res)
}
