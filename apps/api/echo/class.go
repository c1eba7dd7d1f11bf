package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/class"
)

type classApi struct {
	svc        class.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerClassAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc class.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := classApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	cg := g.Group("/classes")

	// un-authed endpoints
	cg.GET("", api.query)

	// authed endpoints
	ag := cg.Group("", jwt)
	ag.GET("/enrolled", api.queryEnrolled)
	ag.POST("/enroll", api.enroll)
	ag.POST("/unenroll", api.unenroll)

	// admin endpoints
	adg := g.Group("/admin/classes", jwt, adminMiddleware())
	adg.GET("", api.queryDetailed)
	adg.POST("", api.create)
	adg.POST("/recurring", api.createRecurring)
	adg.DELETE("", api.destroy)
	adg.DELETE("/clear", api.clear)
	adg.POST("/unenroll", api.adminUnenroll)
}

// Handlers

func (api *classApi) query(ctx echo.Context) error {
	classes, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) queryEnrolled(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	classes, err := api.svc.QueryEnrolled(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying enrolled classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) enroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), claims.Subject, data.ClassID)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *classApi) unenroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	if err := api.svc.Unenroll(ctx.Request().Context(), claims.Subject, data.ClassID); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) queryDetailed(ctx echo.Context) error {
	classes, err := api.svc.QueryDetailed(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) createRecurring(ctx echo.Context) error {
	var data class.NewRecurringClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecurringClass")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}

	res, err := api.svc.CreateRecurring(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating recurring classes")
	}

	code := http.StatusCreated
	if len(res.Created) == 0 {
		code = http.StatusInternalServerError
	}
	return ctx.JSON(code, RecurringResponse{
		Summary: fmt.Sprintf("created %d of %d classes", len(res.Created), len(res.Created)+len(res.Errors)),
		Created: res.Created,
		Errors:  res.Errors,
	})
}

func (api *classApi) destroy(ctx echo.Context) error {
	id := core.CleanString(ctx.QueryParam("id"))
	if id == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "this field is required"})
	}

	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) clear(ctx echo.Context) error {
	if err := api.svc.Clear(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "clearing classes")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) adminUnenroll(ctx echo.Context) error {
	var data AdminUnenrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdminUnenrollRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	if err := api.svc.Unenroll(ctx.Request().Context(), data.UserID, data.ClassID); err != nil {
		return errors.Wrap(err, "unenrolling user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	EnrollRequest struct {
		ClassID string `json:"classId" validate:"required"`
	}

	AdminUnenrollRequest struct {
		ClassID string `json:"classId" validate:"required"`
		UserID  string `json:"userId" validate:"required"`
	}

	RecurringResponse struct {
		Summary string        `json:"summary"`
		Created []class.Class `json:"created"`
		Errors  []string      `json:"errors,omitempty"`
	}
)
