package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/geocoder89/registrationhub/internal/domain/registration"
	"github.com/gin-gonic/gin"
)

const (
	// ResultHeader reports the outcome of a delete, since its 204 carries no body.
	ResultHeader = "X-Registration-Result"

	emailTakenMessage = "Email already exists please perform an update"
)

type RegistrationService interface {
	Create(ctx context.Context, req registration.CreateRequest) (registration.Registration, error)
	GetByID(ctx context.Context, id int64) (registration.Registration, bool, error)
	List(ctx context.Context) ([]registration.Registration, error)
	Update(ctx context.Context, id int64, req registration.UpdateRequest) (registration.Registration, bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type RegistrationHandler struct {
	svc RegistrationService
}

func NewRegistrationHandler(svc RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

type registrationResponse struct {
	registration.Registration
	Message string `json:"message,omitempty"`
}

func (h *RegistrationHandler) Create(ctx *gin.Context) {
	var req registration.CreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	reg, err := h.svc.Create(ctx.Request.Context(), req)
	if err != nil {
		if errors.Is(err, registration.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", emailTakenMessage)
			return
		}
		RespondInternal(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, registrationResponse{Registration: reg, Message: "Created successfully"})
}

// List returns every registration, or only the one named by ?id=.
func (h *RegistrationHandler) List(ctx *gin.Context) {
	if raw, ok := ctx.GetQuery("id"); ok {
		id, valid := parseID(raw)
		if !valid {
			RespondBadRequest(ctx, "id must be a positive integer", gin.H{"field": "id"})
			return
		}

		reg, found, err := h.svc.GetByID(ctx.Request.Context(), id)
		if err != nil {
			RespondInternal(ctx, err)
			return
		}
		if !found {
			RespondNoContent(ctx)
			return
		}

		ctx.JSON(http.StatusOK, []registration.Registration{reg})
		return
	}

	regs, err := h.svc.List(ctx.Request.Context())
	if err != nil {
		RespondInternal(ctx, err)
		return
	}

	if len(regs) == 0 {
		RespondNoContent(ctx)
		return
	}

	ctx.JSON(http.StatusOK, regs)
}

func (h *RegistrationHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	reg, found, err := h.svc.GetByID(ctx.Request.Context(), id)
	if err != nil {
		RespondInternal(ctx, err)
		return
	}
	if !found {
		RespondNoContent(ctx)
		return
	}

	ctx.JSON(http.StatusOK, reg)
}

func (h *RegistrationHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req registration.UpdateRequest

	if !BindUpdate(ctx, &req) {
		return
	}

	reg, found, err := h.svc.Update(ctx.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, registration.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", emailTakenMessage)
			return
		}
		RespondInternal(ctx, err)
		return
	}
	if !found {
		RespondNoContent(ctx)
		return
	}

	ctx.JSON(http.StatusOK, registrationResponse{Registration: reg, Message: "Updated successfully"})
}

func (h *RegistrationHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	deleted, err := h.svc.Delete(ctx.Request.Context(), id)
	if err != nil {
		RespondInternal(ctx, err)
		return
	}

	if deleted {
		ctx.Header(ResultHeader, "deleted")
	} else {
		ctx.Header(ResultHeader, "not_found")
	}

	RespondNoContent(ctx)
}

func pathID(ctx *gin.Context) (int64, bool) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		RespondBadRequest(ctx, "id must be a positive integer", gin.H{"field": "id"})
		return 0, false
	}
	return id, true
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
