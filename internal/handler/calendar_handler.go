package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/internal/service"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
	"github.com/epathshala/portal-api/pkg/response"
)

type calendarService interface {
	List(ctx context.Context, viewer *models.JWTClaims, req service.CalendarListRequest) ([]models.CalendarEvent, *models.Pagination, error)
	Get(ctx context.Context, viewer *models.JWTClaims, id string) (*models.CalendarEvent, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.CalendarEventRequest) (*models.CalendarEvent, error)
	Update(ctx context.Context, id string, req service.CalendarEventRequest) (*models.CalendarEvent, error)
	Delete(ctx context.Context, id string) error
}

// CalendarHandler exposes the academic calendar.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(svc calendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// List godoc
// @Summary List academic events
// @Description Public calendar; signed-in users also see events for their role
// @Tags Calendar
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *CalendarHandler) List(c *gin.Context) {
	from, err := parseCalendarDate(pickQuery(c, "from", "startDate"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseCalendarDate(pickQuery(c, "to", "endDate"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if to != nil {
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}

	events, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), service.CalendarListRequest{
		From:     from,
		To:       to,
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get academic event
// @Description Events for other roles read as not found
// @Tags Calendar
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *CalendarHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Create godoc
// @Summary Create academic event
// @Description Stores the event and announces it to its audience
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.CalendarEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/events [post]
func (h *CalendarHandler) Create(c *gin.Context) {
	var req service.CalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid payload"))
		return
	}
	event, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update academic event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.CalendarEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Router /admin/events/{id} [put]
func (h *CalendarHandler) Update(c *gin.Context) {
	var req service.CalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid payload"))
		return
	}
	event, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete academic event
// @Tags Calendar
// @Param id path string true "Event ID"
// @Success 204
// @Router /admin/events/{id} [delete]
func (h *CalendarHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseCalendarDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}

func pickQuery(c *gin.Context, preferred string, fallback string) string {
	if value := c.Query(preferred); value != "" {
		return value
	}
	return c.Query(fallback)
}
