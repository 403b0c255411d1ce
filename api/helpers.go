package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

// respond maps engine errors onto HTTP responses. Client errors become Forge
// errors; conflicts and infrastructure failures are written directly because
// they carry a retry hint for the caller.
func respond(ctx forge.Context, err error) error {
	switch {
	case errors.Is(err, bastion.ErrInfraFailure):
		return ctx.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "infra_failure"})
	case errors.Is(err, bastion.ErrConflict):
		return ctx.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	}
	return mapError(err)
}

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bastion.ErrValidation) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, bastion.ErrNotFound) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, bastion.ErrPermission) || errors.Is(err, bastion.ErrLockedRole) {
		return forge.Forbidden(err.Error())
	}
	return err
}

// callerID returns the authenticated caller. Mutations are attributed to
// this identity in the audit log.
func callerID(ctx forge.Context) (string, error) {
	id := forge.UserIDFromContext(ctx.Context())
	if id == "" {
		return "", forge.Forbidden("authenticated caller required")
	}
	return id, nil
}

// check runs struct validation and turns failures into a single 400.
func (a *API) check(req any) error {
	err := a.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return forge.BadRequest(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return forge.BadRequest("invalid request: " + strings.Join(msgs, ", "))
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
