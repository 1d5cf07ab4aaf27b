package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ticketpay/internal/domain"
	"ticketpay/monitoring"
)

type attendanceService struct {
	registrations domain.EventRegistrationRepository
	logs          domain.AttendanceLogRepository
	logger        *slog.Logger
}

// NewAttendanceService creates the door-side attendance service.
func NewAttendanceService(
	registrations domain.EventRegistrationRepository,
	logs domain.AttendanceLogRepository,
	logger *slog.Logger,
) domain.AttendanceService {
	return &attendanceService{
		registrations: registrations,
		logs:          logs,
		logger:        logger,
	}
}

func (s *attendanceService) CheckInByCredential(ctx context.Context, eventID, credential, actor string) (*domain.CheckInResult, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: credential is required", domain.ErrInvalidInput)
	}
	reg, err := s.registrations.GetByCredential(ctx, eventID, credential)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration by credential: %w", err)
	}
	return s.checkIn(ctx, reg, domain.MethodQRScan, actor)
}

func (s *attendanceService) CheckInManual(ctx context.Context, eventID, registrationID, actor string) (*domain.CheckInResult, error) {
	reg, err := s.loadForEvent(ctx, eventID, registrationID)
	if err != nil {
		return nil, err
	}
	return s.checkIn(ctx, reg, domain.MethodManual, actor)
}

// checkIn performs the registered->checked_in transition. The conditional
// update in the repository decides duplicates; a repeat scan returns the
// registration unchanged with Duplicate set and appends nothing to the
// audit trail.
func (s *attendanceService) checkIn(ctx context.Context, reg *domain.EventRegistration, method domain.CheckInMethod, actor string) (*domain.CheckInResult, error) {
	now := nowUTC()
	won, err := s.registrations.MarkCheckedIn(ctx, reg.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark checked in: %w", err)
	}
	if !won {
		current, err := s.registrations.GetByID(ctx, reg.ID)
		if err != nil {
			return nil, fmt.Errorf("reload registration: %w", err)
		}
		monitoring.TrackAttendance(string(domain.ActionCheckIn), "duplicate")
		return &domain.CheckInResult{Registration: current, Duplicate: true}, nil
	}

	entry := &domain.AttendanceLog{
		RegistrationID: reg.ID,
		Action:         domain.ActionCheckIn,
		Method:         method,
		Actor:          actor,
		CreatedAt:      now,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		// The transition already committed; a lost audit row is logged, not
		// surfaced to the door.
		s.logger.ErrorContext(ctx, "append check-in log", "registration_id", reg.ID, "err", err)
	}

	reg.AttendanceStatus = domain.AttendanceCheckedIn
	reg.CheckInTime = &now
	monitoring.TrackAttendance(string(domain.ActionCheckIn), "ok")
	return &domain.CheckInResult{Registration: reg}, nil
}

func (s *attendanceService) CheckOut(ctx context.Context, eventID, registrationID, actor string) (*domain.CheckOutResult, error) {
	reg, err := s.loadForEvent(ctx, eventID, registrationID)
	if err != nil {
		return nil, err
	}

	now := nowUTC()
	// prior is read atomically with the transition; a check-in that lands
	// after the load above must not label this checkout as forced.
	prior, won, err := s.registrations.MarkCheckedOut(ctx, reg.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark checked out: %w", err)
	}

	result := &domain.CheckOutResult{Registration: reg}
	entry := &domain.AttendanceLog{
		RegistrationID: reg.ID,
		Action:         domain.ActionCheckOut,
		Method:         domain.MethodManual,
		Actor:          actor,
		CreatedAt:      now,
	}
	switch {
	case !won:
		result.Duplicate = true
		entry.Note = "duplicate checkout"
		monitoring.TrackAttendance(string(domain.ActionCheckOut), "duplicate")
	case prior == domain.AttendanceRegistered:
		// Tolerated: attendee leaves without ever having been scanned in.
		result.Forced = true
		entry.Note = "forced checkout without check-in"
		monitoring.TrackAttendance(string(domain.ActionCheckOut), "forced")
	default:
		monitoring.TrackAttendance(string(domain.ActionCheckOut), "ok")
	}

	// Unlike duplicate check-ins, every checkout attempt is logged: the
	// forced and duplicate variants are exactly what an organizer audits.
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "append check-out log", "registration_id", reg.ID, "err", err)
	}

	if won {
		reg.AttendanceStatus = domain.AttendanceCheckedOut
		reg.CheckOutTime = &now
	}
	return result, nil
}

func (s *attendanceService) History(ctx context.Context, eventID string) ([]*domain.AttendanceLog, error) {
	entries, err := s.logs.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendance history: %w", err)
	}
	return entries, nil
}

// loadForEvent fetches a registration by id and refuses to cross event
// boundaries: a registration id from another event reads as not found.
func (s *attendanceService) loadForEvent(ctx context.Context, eventID, registrationID string) (*domain.EventRegistration, error) {
	if registrationID == "" {
		return nil, fmt.Errorf("%w: registration_id is required", domain.ErrInvalidInput)
	}
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if reg.EventID != eventID {
		return nil, domain.ErrNotFound
	}
	return reg, nil
}
