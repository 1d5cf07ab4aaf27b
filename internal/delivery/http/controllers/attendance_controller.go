package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"ticketpay/internal/delivery/http/helpers"
	"ticketpay/internal/delivery/http/middleware"
	"ticketpay/internal/domain"
)

// ScanCheckInRequest is the request body for POST /events/{eventID}/attendance/scan.
type ScanCheckInRequest struct {
	QRCode string `json:"qr_code"`
}

// Validate implements Validator.
func (r ScanCheckInRequest) Validate() []string {
	var errs []string
	if r.QRCode == "" {
		errs = append(errs, "qr_code is required")
	}
	return errs
}

// RegistrationIDRequest is the request body for manual check-in and checkout.
type RegistrationIDRequest struct {
	RegistrationID string `json:"registration_id"`
}

// Validate implements Validator.
func (r RegistrationIDRequest) Validate() []string {
	var errs []string
	if r.RegistrationID == "" {
		errs = append(errs, "registration_id is required")
	}
	return errs
}

// CheckInResponse is the response body for the check-in endpoints.
type CheckInResponse struct {
	Registration *RegistrationResponse `json:"registration"`
	Duplicate    bool                  `json:"duplicate"`
}

// CheckOutResponse is the response body for the checkout endpoint.
type CheckOutResponse struct {
	Registration *RegistrationResponse `json:"registration"`
	Duplicate    bool                  `json:"duplicate"`
	Forced       bool                  `json:"forced"`
}

type AttendanceController struct {
	Logger  *slog.Logger
	Service domain.AttendanceService
}

func NewAttendanceController(logger *slog.Logger, svc domain.AttendanceService) *AttendanceController {
	return &AttendanceController{
		Logger:  logger,
		Service: svc,
	}
}

// Scan godoc
// @Summary Check in an attendee by QR code
// @Description Looks up the registration by the scanned credential, scoped to the event, and checks it in. A repeat scan returns the registration unchanged with duplicate set; it is never an error.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param scan body ScanCheckInRequest true "Scanned QR payload"
// @Success 200 {object} helpers.APIResponse "data contains the registration and duplicate flag"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /events/{eventID}/attendance/scan [post]
func (c *AttendanceController) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanCheckInRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, _ := middleware.UserIDFromContext(r.Context())
	res, err := c.Service.CheckInByCredential(r.Context(), r.PathValue("eventID"), req.QRCode, actor)
	if err != nil {
		c.writeAttendanceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CheckInResponse{
		Registration: newRegistrationResponse(res.Registration),
		Duplicate:    res.Duplicate,
	})
}

// ManualCheckIn godoc
// @Summary Check in an attendee by registration ID
// @Description Fallback for unreadable codes: checks in the registration directly. Same idempotency as the scan path.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param checkin body RegistrationIDRequest true "Registration to check in"
// @Success 200 {object} helpers.APIResponse "data contains the registration and duplicate flag"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /events/{eventID}/attendance/manual [post]
func (c *AttendanceController) ManualCheckIn(w http.ResponseWriter, r *http.Request) {
	var req RegistrationIDRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, _ := middleware.UserIDFromContext(r.Context())
	res, err := c.Service.CheckInManual(r.Context(), r.PathValue("eventID"), req.RegistrationID, actor)
	if err != nil {
		c.writeAttendanceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CheckInResponse{
		Registration: newRegistrationResponse(res.Registration),
		Duplicate:    res.Duplicate,
	})
}

// CheckOut godoc
// @Summary Check out an attendee
// @Description Checks the registration out. Checking out an attendee who was never checked in succeeds with forced set; a repeat checkout succeeds with duplicate set. Both variants are recorded in the attendance history.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param checkout body RegistrationIDRequest true "Registration to check out"
// @Success 200 {object} helpers.APIResponse "data contains the registration, duplicate, and forced flags"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /events/{eventID}/attendance/checkout [post]
func (c *AttendanceController) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req RegistrationIDRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, _ := middleware.UserIDFromContext(r.Context())
	res, err := c.Service.CheckOut(r.Context(), r.PathValue("eventID"), req.RegistrationID, actor)
	if err != nil {
		c.writeAttendanceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CheckOutResponse{
		Registration: newRegistrationResponse(res.Registration),
		Duplicate:    res.Duplicate,
		Forced:       res.Forced,
	})
}

// History godoc
// @Summary Get attendance history for an event
// @Description Returns the append-only attendance log for the event, newest first.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} helpers.APIResponse "data contains the log entries"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /events/{eventID}/attendance/history [get]
func (c *AttendanceController) History(w http.ResponseWriter, r *http.Request) {
	entries, err := c.Service.History(r.Context(), r.PathValue("eventID"))
	if err != nil {
		c.writeAttendanceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, entries)
}

func (c *AttendanceController) writeAttendanceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "registration not found for this event")
	case errors.Is(err, domain.ErrInvalidInput):
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "internal error")
	}
}
