package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tujenge/kazipro/core"
	"github.com/tujenge/kazipro/core/user"
)

type (
	userAPI struct {
		svc *user.Service
	}

	// LoginRequest is the JSON body expected by the login endpoint.
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	// LoginResponse is returned on successful authentication or token refresh.
	LoginResponse struct {
		Token string `json:"token"`
	}

	// PasswordResetRequest starts the password reset flow.
	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	// DestroyMultipleRequest identifies the users to delete.
	DestroyMultipleRequest struct {
		IDs []string `json:"ids" validate:"required,min=1,dive,required"`
	}
)

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service) {
	api := userAPI{svc: svc}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)

	// management endpoints
	mg := ug.Group("", jwt, requireCapability(user.CanManageUsers))
	mg.POST("", api.create)
	mg.GET("", api.query)
	mg.GET("/roles", api.queryRoles)
	mg.DELETE("", api.destroyMultiple)

	// detail endpoints: the owner or a manager
	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, requireCapability(user.CanManageUsers))
}

func (api *userAPI) login(ctx echo.Context) error {
	data := new(LoginRequest)
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	claims, err := authenticate(ctx, data.Username, data.Password, api.svc)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userAPI) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userAPI) resetPassword(ctx echo.Context) error {
	data := new(PasswordResetRequest)
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "requesting password reset")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message": "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userAPI) confirmPasswordReset(ctx echo.Context) error {
	data := new(user.ResetUserPassword)
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if _, err := api.svc.ResetPassword(ctx.Request().Context(), *data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Password has been reset with the new password."})
}

func (api *userAPI) create(ctx echo.Context) error {
	data := new(user.NewUser)
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// an actor cannot grant a role above their own
	if user.RolePriority(data.Role) > user.RolePriority(claims.Role) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "role", Error: "not enough rights to set this role",
		})
	}

	usr, err := api.svc.Create(ctx.Request().Context(), *data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userAPI) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding filter")
	}
	filter.Clean()

	var users []user.User
	var err error
	if filter.IsEmpty() {
		users, err = api.svc.QueryAll(ctx.Request().Context())
	} else {
		users, err = api.svc.Filter(ctx.Request().Context(), *filter)
	}
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userAPI) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userAPI) retrieve(ctx echo.Context) error {
	usr, err := api.objectOrForbidden(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) update(ctx echo.Context) error {
	usr, err := api.objectOrForbidden(ctx)
	if err != nil {
		return err
	}

	data := new(user.UpdateUser)
	if err = ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err = data.Validate(usr, api.svc); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if data.Role != "" && data.Role != usr.Role {
		if !claims.Can(user.CanManageUsers) ||
			user.RolePriority(data.Role) > user.RolePriority(claims.Role) {
			return core.NewValidationError(nil, core.FieldError{
				Field: "role", Error: "not enough rights to set this role",
			})
		}
	}
	// only managers may (de)activate accounts
	if data.IsActive != nil && !claims.Can(user.CanManageUsers) {
		data.IsActive = nil
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr.ID, *data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	id := ctx.Param("id")
	if id == claims.Subject {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot delete own account")
	}

	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userAPI) destroyMultiple(ctx echo.Context) error {
	data := new(DestroyMultipleRequest)
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding data")
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	for _, id := range data.IDs {
		if id == claims.Subject {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot delete own account")
		}
	}

	if err = api.svc.Delete(ctx.Request().Context(), data.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// objectOrForbidden loads the user targeted by the :id param. Managers can
// target anyone; everyone else only themselves.
func (api *userAPI) objectOrForbidden(ctx echo.Context) (user.User, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}

	id := ctx.Param("id")
	if id != claims.Subject && !claims.Can(user.CanManageUsers) {
		return user.User{}, errHttpForbidden
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errHttpNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}
