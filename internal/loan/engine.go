package loan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lab-loan-backend/internal/model"
	"lab-loan-backend/internal/notification"
	"lab-loan-backend/internal/store"
)

// Engine owns the loan lifecycle: reservation creation with overlap
// rejection, checkout, return, and the periodic overdue/reminder sweeps.
//
// Concurrent reservations for the same equipment are serialized through a
// per-equipment mutex held across the overlap check and the reservation
// write, so two requests for an overlapping window cannot both pass the
// check. The store re-checks inside its transaction as a backstop.
type Engine struct {
	store    store.Store
	gateway  notification.Gateway
	loc      *time.Location
	reserveM *keyedMutex

	nowFunc func() time.Time
}

// NewEngine creates a loan engine. loc determines the calendar-day window
// used for reminder deduplication; pass time.UTC when no campus timezone is
// configured.
func NewEngine(s store.Store, g notification.Gateway, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		store:    s,
		gateway:  g,
		loc:      loc,
		reserveM: newKeyedMutex(),
		nowFunc:  time.Now,
	}
}

func (e *Engine) now() time.Time {
	return e.nowFunc().In(e.loc)
}

// ceilDays returns the span in whole days, rounding any partial day up.
// Negative spans round toward zero, matching ceil on negative values.
func ceilDays(d time.Duration) int {
	const day = 24 * time.Hour
	n := int(d / day)
	if d%day > 0 {
		n++
	}
	return n
}

// CreateReservation validates and creates a loan in the reserved state,
// marks the equipment on-loan, and notifies the borrower.
func (e *Engine) CreateReservation(ctx context.Context, userID, equipmentID string, startDate, endDate time.Time, remarks string) (*model.Loan, error) {
	eq, err := e.store.FindEquipmentByID(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("equipment not found")
		}
		return nil, err
	}

	if eq.Status == model.EquipmentMaintenance {
		return nil, errInvalidState("equipment %s is under maintenance and cannot be loaned", eq.Code)
	}

	user, err := e.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("user not found")
		}
		return nil, err
	}
	if !user.Active {
		return nil, errInvalidState("user account is inactive")
	}

	now := e.now()
	if startDate.Before(now) {
		return nil, errInvalidArgument("start date must not be in the past")
	}
	if !endDate.After(startDate) {
		return nil, errInvalidArgument("end date must be after start date")
	}

	days := ceilDays(endDate.Sub(startDate))
	if maxDays := user.Role.MaxLoanDays(); days > maxDays {
		return nil, errPolicyViolation("reservation limit for role %s is %d days", user.Role, maxDays)
	}

	e.reserveM.Lock(equipmentID)
	defer e.reserveM.Unlock(equipmentID)

	overlapping, err := e.store.FindOverlappingLoans(ctx, equipmentID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, errConflict("equipment %s is already reserved or on loan in the requested window", eq.Code)
	}

	created := &model.Loan{
		ID:                 uuid.NewString(),
		UserID:             userID,
		EquipmentID:        equipmentID,
		ReservedAt:         now,
		StartDate:          startDate,
		EndDate:            endDate,
		Status:             model.LoanReserved,
		ReservationRemarks: remarks,
	}
	if err := e.store.CreateLoan(ctx, created); err != nil {
		if errors.Is(err, store.ErrOverlap) {
			return nil, errConflict("equipment %s is already reserved or on loan in the requested window", eq.Code)
		}
		return nil, err
	}

	e.gateway.Notify(ctx, userID, model.NotifyReservation,
		fmt.Sprintf("Your reservation for equipment %s has been created.", eq.Code))

	return e.store.FindLoanByID(ctx, created.ID)
}

// Checkout transitions a reserved loan to active and stamps CheckoutAt.
// Equipment status is untouched: the item has been on-loan since the
// reservation was created.
func (e *Engine) Checkout(ctx context.Context, id string) (*model.Loan, error) {
	l, err := e.store.FindLoanByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("loan not found")
		}
		return nil, err
	}

	if l.Status != model.LoanReserved {
		return nil, errInvalidState("only reserved loans can be checked out")
	}

	now := e.now()
	l.Status = model.LoanActive
	l.CheckoutAt = &now
	if err := e.store.UpdateLoan(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Return transitions a loan into the terminal returned state and re-derives
// the equipment status. If requesterID is non-empty it must be the borrower
// or an admin.
func (e *Engine) Return(ctx context.Context, id, remarks, requesterID string) (*model.Loan, error) {
	l, err := e.store.FindLoanByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("loan not found")
		}
		return nil, err
	}

	if requesterID != "" && requesterID != l.UserID {
		requester, err := e.store.FindUserByID(ctx, requesterID)
		if err != nil || requester.Role != model.RoleAdmin {
			return nil, errForbidden("not allowed to return this loan")
		}
	}

	if l.Status == model.LoanReturned {
		return nil, errInvalidState("loan has already been returned")
	}

	now := e.now()
	l.Status = model.LoanReturned
	l.ReturnedAt = &now
	l.ReturnRemarks = remarks
	if err := e.store.CompleteReturn(ctx, l); err != nil {
		return nil, err
	}

	return e.store.FindLoanByID(ctx, id)
}

// CheckOverdueLoans marks every reserved or active loan whose end date has
// passed as overdue and alerts the borrower. Safe to invoke repeatedly:
// loans already overdue or returned never match the selection, and the alert
// goes through the daily dedup guard.
func (e *Engine) CheckOverdueLoans(ctx context.Context) error {
	now := e.now()
	due, err := e.store.FindLoansDueBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("select overdue loans: %w", err)
	}

	for i := range due {
		l := &due[i]
		l.Status = model.LoanOverdue
		if err := e.store.UpdateLoan(ctx, l); err != nil {
			log.Printf("overdue sweep: failed to update loan %s: %v", l.ID, err)
			continue
		}
		e.notifyOverdue(ctx, l, now)
	}
	return nil
}

// CheckAndSendReminders scans unreturned loans and sends at most one
// reminder of each kind per loan per calendar day: due tomorrow, due today,
// or overdue. A loan found past its end date is transitioned to overdue
// immediately rather than waiting for the overdue sweep.
func (e *Engine) CheckAndSendReminders(ctx context.Context) error {
	now := e.now()
	open, err := e.store.FindUnreturnedLoans(ctx)
	if err != nil {
		return fmt.Errorf("select unreturned loans: %w", err)
	}

	for i := range open {
		l := &open[i]
		switch daysUntilDue := ceilDays(l.EndDate.Sub(now)); {
		case daysUntilDue == 1:
			e.remind(ctx, l, now, fmt.Sprintf("Equipment %s (%s) must be returned tomorrow", l.Equipment.Name, l.Equipment.Code))
		case daysUntilDue == 0:
			e.remind(ctx, l, now, fmt.Sprintf("Equipment %s (%s) must be returned today", l.Equipment.Name, l.Equipment.Code))
		case daysUntilDue < 0:
			if l.Status != model.LoanOverdue {
				l.Status = model.LoanOverdue
				if err := e.store.UpdateLoan(ctx, l); err != nil {
					log.Printf("reminder sweep: failed to mark loan %s overdue: %v", l.ID, err)
					continue
				}
			}
			e.notifyOverdue(ctx, l, now)
		}
	}
	return nil
}

// remind emits a reminder notification unless one with the same message
// prefix already went out to the borrower today.
func (e *Engine) remind(ctx context.Context, l *model.Loan, now time.Time, message string) {
	sent, err := e.gateway.HasNotificationToday(ctx, l.UserID, model.NotifyReminder, message, now)
	if err != nil {
		log.Printf("reminder sweep: dedup check failed for loan %s: %v", l.ID, err)
		return
	}
	if sent {
		return
	}
	e.gateway.Notify(ctx, l.UserID, model.NotifyReminder,
		fmt.Sprintf("%s (due %s).", message, l.EndDate.In(e.loc).Format("2006-01-02")))
}

// notifyOverdue is the single emission point for overdue alerts, shared by
// both sweeps so the alert cannot double-fire whichever sweep observes the
// loan first.
func (e *Engine) notifyOverdue(ctx context.Context, l *model.Loan, now time.Time) {
	pattern := fmt.Sprintf("Equipment %s (%s) is overdue", l.Equipment.Name, l.Equipment.Code)
	sent, err := e.gateway.HasNotificationToday(ctx, l.UserID, model.NotifyOverdue, pattern, now)
	if err != nil {
		log.Printf("overdue alert: dedup check failed for loan %s: %v", l.ID, err)
		return
	}
	if sent {
		return
	}
	e.gateway.Notify(ctx, l.UserID, model.NotifyOverdue,
		pattern+". Please return it as soon as possible.")
}
