package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketpay/internal/delivery/http/helpers"
	"ticketpay/internal/delivery/http/middleware"
	"ticketpay/internal/domain"
)

// fakeAttendanceService implements domain.AttendanceService for handler tests.
type fakeAttendanceService struct {
	checkInResult  *domain.CheckInResult
	checkInErr     error
	checkOutResult *domain.CheckOutResult
	checkOutErr    error
	history        []*domain.AttendanceLog
	historyErr     error

	lastEventID    string
	lastCredential string
	lastRegID      string
	lastActor      string
}

func (f *fakeAttendanceService) CheckInByCredential(ctx context.Context, eventID, credential, actor string) (*domain.CheckInResult, error) {
	f.lastEventID = eventID
	f.lastCredential = credential
	f.lastActor = actor
	if f.checkInErr != nil {
		return nil, f.checkInErr
	}
	return f.checkInResult, nil
}

func (f *fakeAttendanceService) CheckInManual(ctx context.Context, eventID, registrationID, actor string) (*domain.CheckInResult, error) {
	f.lastEventID = eventID
	f.lastRegID = registrationID
	f.lastActor = actor
	if f.checkInErr != nil {
		return nil, f.checkInErr
	}
	return f.checkInResult, nil
}

func (f *fakeAttendanceService) CheckOut(ctx context.Context, eventID, registrationID, actor string) (*domain.CheckOutResult, error) {
	f.lastEventID = eventID
	f.lastRegID = registrationID
	f.lastActor = actor
	if f.checkOutErr != nil {
		return nil, f.checkOutErr
	}
	return f.checkOutResult, nil
}

func (f *fakeAttendanceService) History(ctx context.Context, eventID string) ([]*domain.AttendanceLog, error) {
	f.lastEventID = eventID
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func checkedInRegistration() *domain.EventRegistration {
	return &domain.EventRegistration{
		ID:                "reg-1",
		EventID:           "ev-1",
		AttendeeEmail:     "buyer@example.com",
		TicketQuantity:    2,
		TotalAmount:       decimal.RequireFromString("10000"),
		CheckInCredential: "EVT-abc",
		AttendanceStatus:  domain.AttendanceCheckedIn,
	}
}

func attendanceRequest(t *testing.T, method, target, body, eventID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.SetPathValue("eventID", eventID)
	req = req.WithContext(middleware.SetUserID(req.Context(), "staff-1"))
	return req
}

func TestAttendanceController_Scan(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeAttendanceService{checkInResult: &domain.CheckInResult{Registration: checkedInRegistration()}}
		ctrl := NewAttendanceController(testLogger, svc)

		req := attendanceRequest(t, http.MethodPost, "/events/ev-1/attendance/scan", `{"qr_code":"EVT-abc"}`, "ev-1")
		rec := httptest.NewRecorder()
		ctrl.Scan(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		data, apiErr := decodeEnvelope(t, rec.Body)
		require.Nil(t, apiErr)
		assert.Equal(t, false, data["duplicate"])
		assert.Equal(t, "ev-1", svc.lastEventID)
		assert.Equal(t, "EVT-abc", svc.lastCredential)
		assert.Equal(t, "staff-1", svc.lastActor)
	})

	t.Run("duplicate scan reported in body not status", func(t *testing.T) {
		svc := &fakeAttendanceService{checkInResult: &domain.CheckInResult{
			Registration: checkedInRegistration(), Duplicate: true,
		}}
		ctrl := NewAttendanceController(testLogger, svc)

		req := attendanceRequest(t, http.MethodPost, "/events/ev-1/attendance/scan", `{"qr_code":"EVT-abc"}`, "ev-1")
		rec := httptest.NewRecorder()
		ctrl.Scan(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		data, _ := decodeEnvelope(t, rec.Body)
		assert.Equal(t, true, data["duplicate"])
	})

	t.Run("missing qr_code", func(t *testing.T) {
		svc := &fakeAttendanceService{}
		ctrl := NewAttendanceController(testLogger, svc)

		req := attendanceRequest(t, http.MethodPost, "/events/ev-1/attendance/scan", `{}`, "ev-1")
		rec := httptest.NewRecorder()
		ctrl.Scan(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, svc.lastCredential)
	})

	t.Run("unknown credential maps to 404", func(t *testing.T) {
		svc := &fakeAttendanceService{checkInErr: domain.ErrNotFound}
		ctrl := NewAttendanceController(testLogger, svc)

		req := attendanceRequest(t, http.MethodPost, "/events/ev-1/attendance/scan", `{"qr_code":"EVT-x"}`, "ev-1")
		rec := httptest.NewRecorder()
		ctrl.Scan(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		_, apiErr := decodeEnvelope(t, rec.Body)
		require.NotNil(t, apiErr)
		assert.Equal(t, helpers.ErrCodeNotFound, apiErr.Code)
	})
}

func TestAttendanceController_ManualCheckIn(t *testing.T) {
	svc := &fakeAttendanceService{checkInResult: &domain.CheckInResult{Registration: checkedInRegistration()}}
	ctrl := NewAttendanceController(testLogger, svc)

	req := attendanceRequest(t, http.MethodPost, "/events/ev-1/attendance/manual", `{"registration_id":"reg-1"}`, "ev-1")
	rec := httptest.NewRecorder()
	ctrl.ManualCheckIn(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reg-1", svc.lastRegID)
	assert.Equal(t, "staff-1", svc.lastActor)
}

func TestAttendanceController_CheckOut(t *testing.T) {
	t.Run("forced checkout flagged", func(t *testing.T) {
		reg := checkedInRegistration()
		reg.AttendanceStatus = domain.AttendanceCheckedOut
		svc := &fakeAttendanceService{checkOutResult: &domain.CheckOutResult{Registration: reg, Forced: true}}
		ctrl := NewAttendanceController(testLogger, svc)

		req := attendanceRequest(t, http.MethodPost, "/events/ev-1/attendance/checkout", `{"registration_id":"reg-1"}`, "ev-1")
		rec := httptest.NewRecorder()
		ctrl.CheckOut(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		data, _ := decodeEnvelope(t, rec.Body)
		assert.Equal(t, true, data["forced"])
		assert.Equal(t, false, data["duplicate"])
	})

	t.Run("missing registration_id", func(t *testing.T) {
		ctrl := NewAttendanceController(testLogger, &fakeAttendanceService{})
		req := attendanceRequest(t, http.MethodPost, "/events/ev-1/attendance/checkout", `{}`, "ev-1")
		rec := httptest.NewRecorder()
		ctrl.CheckOut(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAttendanceController_History(t *testing.T) {
	svc := &fakeAttendanceService{history: []*domain.AttendanceLog{
		{ID: "log-2", RegistrationID: "reg-1", Action: domain.ActionCheckOut, Actor: "staff-1"},
		{ID: "log-1", RegistrationID: "reg-1", Action: domain.ActionCheckIn, Actor: "staff-1", Method: domain.MethodQRScan},
	}}
	ctrl := NewAttendanceController(testLogger, svc)

	req := attendanceRequest(t, http.MethodGet, "/events/ev-1/attendance/history", "", "ev-1")
	rec := httptest.NewRecorder()
	ctrl.History(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data  []map[string]any  `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "check_out", envelope.Data[0]["action"])
	assert.Equal(t, "ev-1", svc.lastEventID)
}
