package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tujenge/kazipro/core/project"
	"github.com/tujenge/kazipro/core/reservation"
	"github.com/tujenge/kazipro/core/user"
)

type (
	projectAPI struct {
		svc    *project.Service
		resSvc *reservation.Service
		usrSvc *user.Service
	}

	// ProjectStatusResponse reports the caller's standing on a project.
	ProjectStatusResponse struct {
		ProjectID string             `json:"project_id"`
		Reserved  bool               `json:"reserved"`
		Status    reservation.Status `json:"status,omitempty"`
	}
)

func registerProjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *project.Service, resSvc *reservation.Service, usrSvc *user.Service) {
	api := projectAPI{svc: svc, resSvc: resSvc, usrSvc: usrSvc}

	pg := g.Group("/projects", jwt)
	pg.POST("", api.create, requireCapability(user.CanCreateProject))
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, requireCapability(user.CanCreateProject))
	pg.PUT("/:id/supervisors", api.assignSupervisors, requireCapability(user.CanAssignSupervisors))
	pg.GET("/:id/status", api.reservationStatus)
	pg.DELETE("/:id", api.destroy, requireCapability(user.CanCreateProject))
}

func (api *projectAPI) create(ctx echo.Context) error {
	data := new(project.NewProject)
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	prj, err := api.svc.Create(ctx.Request().Context(), actor, *data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, prj)
}

func (api *projectAPI) query(ctx echo.Context) error {
	filter := new(project.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding filter")
	}
	filter.Clean()

	var projects []project.Project
	var err error
	if filter.IsEmpty() {
		projects, err = api.svc.QueryAll(ctx.Request().Context())
	} else {
		projects, err = api.svc.Filter(ctx.Request().Context(), *filter)
	}
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectAPI) retrieve(ctx echo.Context) error {
	prj, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project by ID")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectAPI) update(ctx echo.Context) error {
	prj, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding project by ID")
	}

	data := new(project.UpdateProject)
	if err = ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err = data.Validate(prj); err != nil {
		return err
	}

	prj, err = api.svc.Update(ctx.Request().Context(), prj.ID, *data)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectAPI) assignSupervisors(ctx echo.Context) error {
	data := new(project.AssignSupervisors)
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	prj, err := api.svc.AssignSupervisors(ctx.Request().Context(), actor, ctx.Param("id"), *data)
	if err != nil {
		return errors.Wrap(err, "assigning supervisors")
	}
	return ctx.JSON(http.StatusOK, prj)
}

// reservationStatus reports the caller's latest reservation status on the project.
// Reserved is true only for a pending or approved claim.
func (api *projectAPI) reservationStatus(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	resp := ProjectStatusResponse{ProjectID: ctx.Param("id")}
	status, err := api.resSvc.GetStatus(ctx.Request().Context(), resp.ProjectID, claims.Subject)
	if err != nil {
		if errors.Cause(err) != reservation.ErrNotFound {
			return errors.Wrap(err, "getting reservation status")
		}
		return ctx.JSON(http.StatusOK, resp)
	}
	resp.Status = status
	resp.Reserved = status.IsActive()
	return ctx.JSON(http.StatusOK, resp)
}

func (api *projectAPI) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}
