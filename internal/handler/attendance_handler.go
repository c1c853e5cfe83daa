package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/internal/service"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
	"github.com/classtrack/classtrack-api/pkg/response"
)

// AttendanceHandler exposes attendance recording and query endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	stats      *service.StatsService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, stats *service.StatsService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, stats: stats}
}

// Record godoc
// @Summary Record one attendance event
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.RecordAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.attendance.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// RecordBatch godoc
// @Summary Record a batch of attendance events
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body []service.RecordAttendanceRequest true "Attendance payloads"
// @Success 200 {object} response.Envelope
// @Router /attendance/batch [post]
func (h *AttendanceHandler) RecordBatch(c *gin.Context) {
	var reqs []service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if len(reqs) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "empty batch"))
		return
	}
	result := h.attendance.RecordBatch(c.Request.Context(), reqs)
	status := http.StatusOK
	if len(result.Recorded) == 0 {
		status = http.StatusBadRequest
	}
	response.JSON(c, status, result, nil)
}

// List godoc
// @Summary List attendance events
// @Tags Attendance
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidQuery, "page must be an integer"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidQuery, "limit must be an integer"))
		return
	}
	events, pagination, err := h.attendance.List(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get one attendance event
// @Tags Attendance
// @Produce json
// @Param id path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	event, err := h.attendance.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Update godoc
// @Summary Update an event's bookkeeping timestamp
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Param payload body service.UpdateAttendanceRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	var req service.UpdateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.attendance.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete an attendance event
// @Tags Attendance
// @Param id path string true "Attendance ID"
// @Success 204
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.attendance.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkPermission godoc
// @Summary Excuse the absence behind an attendance event
// @Tags Attendance
// @Produce json
// @Param id path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id}/mark-permission [post]
func (h *AttendanceHandler) MarkPermission(c *gin.Context) {
	applied, err := h.stats.MarkPermission(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"applied": applied}, nil)
}

// Consolidate godoc
// @Summary Bump a counter for the student owning an attendance event
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Success 204
// @Router /attendance/{id}/consolidate [post]
func (h *AttendanceHandler) Consolidate(c *gin.Context) {
	var req struct {
		Punctuality models.Punctuality `json:"punctuality"`
	}
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	if err := h.stats.Consolidate(c.Request.Context(), c.Param("id"), req.Punctuality); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
