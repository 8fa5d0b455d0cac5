package loan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lab-loan-backend/internal/model"
	"lab-loan-backend/internal/notification"
	"lab-loan-backend/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	// A single connection keeps concurrent goroutines from tripping over
	// sqlite's shared-cache table locks.
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(
		&model.User{},
		&model.Equipment{},
		&model.Loan{},
		&model.Notification{},
		&model.PushSubscription{},
	))
	return gdb
}

func newTestEngine(t *testing.T, gdb *gorm.DB, now time.Time) (*Engine, store.Store) {
	t.Helper()
	s := store.NewGormStore(gdb)
	e := NewEngine(s, notification.NewGateway(s, nil), time.UTC)
	e.nowFunc = func() time.Time { return now }
	return e, s
}

func seedUser(t *testing.T, gdb *gorm.DB, role model.Role, active bool) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@uni.example",
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		Active:       active,
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

func seedEquipment(t *testing.T, gdb *gorm.DB, status model.EquipmentStatus) *model.Equipment {
	t.Helper()
	eq := &model.Equipment{
		ID:              uuid.NewString(),
		Code:            "EQ-" + strings.ToUpper(uuid.NewString()[:8]),
		Name:            "Oscilloscope",
		Category:        "measurement",
		Status:          status,
		Location:        "Lab 2",
		AcquisitionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		EstimatedValue:  1200,
	}
	require.NoError(t, gdb.Create(eq).Error)
	return eq
}

func seedLoan(t *testing.T, gdb *gorm.DB, userID, equipmentID string, status model.LoanStatus, start, end time.Time) *model.Loan {
	t.Helper()
	l := &model.Loan{
		ID:          uuid.NewString(),
		UserID:      userID,
		EquipmentID: equipmentID,
		ReservedAt:  start.Add(-time.Hour),
		StartDate:   start,
		EndDate:     end,
		Status:      status,
	}
	require.NoError(t, gdb.Create(l).Error)
	return l
}

func countNotifications(t *testing.T, gdb *gorm.DB, userID string, typ model.NotificationType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&model.Notification{}).
		Where("user_id = ? AND type = ?", userID, typ).Count(&n).Error)
	return n
}

func TestCreateReservation(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	student := seedUser(t, gdb, model.RoleStudent, true)
	eq := seedEquipment(t, gdb, model.EquipmentAvailable)

	start := now.Add(24 * time.Hour)
	end := now.Add(72 * time.Hour)

	l, err := e.CreateReservation(ctx, student.ID, eq.ID, start, end, "practical session")
	require.NoError(t, err)

	assert.Equal(t, model.LoanReserved, l.Status)
	assert.Nil(t, l.CheckoutAt)
	assert.Nil(t, l.ReturnedAt)
	assert.Equal(t, "practical session", l.ReservationRemarks)
	assert.Equal(t, student.ID, l.User.ID)
	assert.Equal(t, eq.Code, l.Equipment.Code)

	var gotEq model.Equipment
	require.NoError(t, gdb.First(&gotEq, "id = ?", eq.ID).Error)
	assert.Equal(t, model.EquipmentOnLoan, gotEq.Status)

	assert.EqualValues(t, 1, countNotifications(t, gdb, student.ID, model.NotifyReservation))
}

func TestCreateReservationValidation(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	student := seedUser(t, gdb, model.RoleStudent, true)
	inactive := seedUser(t, gdb, model.RoleStudent, false)
	eq := seedEquipment(t, gdb, model.EquipmentAvailable)
	maint := seedEquipment(t, gdb, model.EquipmentMaintenance)

	start := now.Add(24 * time.Hour)
	end := now.Add(48 * time.Hour)

	testCases := []struct {
		name        string
		userID      string
		equipmentID string
		start, end  time.Time
		wantKind    Kind
	}{
		{"unknown equipment", student.ID, uuid.NewString(), start, end, KindNotFound},
		{"equipment under maintenance", student.ID, maint.ID, start, end, KindInvalidState},
		{"unknown user", uuid.NewString(), eq.ID, start, end, KindNotFound},
		{"inactive user", inactive.ID, eq.ID, start, end, KindInvalidState},
		{"start in the past", student.ID, eq.ID, now.Add(-time.Hour), end, KindInvalidArgument},
		{"end not after start", student.ID, eq.ID, start, start, KindInvalidArgument},
		{"student over 3 days", student.ID, eq.ID, start, start.Add(73 * time.Hour), KindPolicyViolation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreateReservation(ctx, tc.userID, tc.equipmentID, tc.start, tc.end, "")
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, KindOf(err))
		})
	}

	var loans int64
	require.NoError(t, gdb.Model(&model.Loan{}).Count(&loans).Error)
	assert.EqualValues(t, 0, loans)
}

func TestDurationPolicyPerRole(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	student := seedUser(t, gdb, model.RoleStudent, true)
	professor := seedUser(t, gdb, model.RoleProfessor, true)
	admin := seedUser(t, gdb, model.RoleAdmin, true)
	start := now.Add(24 * time.Hour)

	// Student: exactly 3 days is allowed.
	eq1 := seedEquipment(t, gdb, model.EquipmentAvailable)
	_, err := e.CreateReservation(ctx, student.ID, eq1.ID, start, start.Add(72*time.Hour), "")
	require.NoError(t, err)

	// Professor: 7 days allowed, 8 rejected.
	eq2 := seedEquipment(t, gdb, model.EquipmentAvailable)
	_, err = e.CreateReservation(ctx, professor.ID, eq2.ID, start, start.Add(7*24*time.Hour), "")
	require.NoError(t, err)

	eq3 := seedEquipment(t, gdb, model.EquipmentAvailable)
	_, err = e.CreateReservation(ctx, professor.ID, eq3.ID, start, start.Add(8*24*time.Hour), "")
	require.Error(t, err)
	assert.Equal(t, KindPolicyViolation, KindOf(err))
	assert.Contains(t, err.Error(), "7")

	// Admins borrow under the student limit.
	eq4 := seedEquipment(t, gdb, model.EquipmentAvailable)
	_, err = e.CreateReservation(ctx, admin.ID, eq4.ID, start, start.Add(4*24*time.Hour), "")
	require.Error(t, err)
	assert.Equal(t, KindPolicyViolation, KindOf(err))
}

func TestOverlapRejection(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	first := seedUser(t, gdb, model.RoleStudent, true)
	second := seedUser(t, gdb, model.RoleStudent, true)
	eq := seedEquipment(t, gdb, model.EquipmentAvailable)

	start := now.Add(24 * time.Hour)
	end := start.Add(48 * time.Hour)
	_, err := e.CreateReservation(ctx, first.ID, eq.ID, start, end, "")
	require.NoError(t, err)

	// Window contained in the existing one.
	_, err = e.CreateReservation(ctx, second.ID, eq.ID, start.Add(24*time.Hour), end.Add(24*time.Hour), "")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	// Touching endpoints count as overlap (closed intervals).
	_, err = e.CreateReservation(ctx, second.ID, eq.ID, end, end.Add(24*time.Hour), "")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	// Disjoint window succeeds.
	_, err = e.CreateReservation(ctx, second.ID, eq.ID, end.Add(time.Hour), end.Add(49*time.Hour), "")
	require.NoError(t, err)
}

func TestConcurrentReservationSingleWinner(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	eq := seedEquipment(t, gdb, model.EquipmentAvailable)
	start := now.Add(24 * time.Hour)
	end := start.Add(48 * time.Hour)

	const attempts = 8
	users := make([]*model.User, attempts)
	for i := range users {
		users[i] = seedUser(t, gdb, model.RoleStudent, true)
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.CreateReservation(ctx, users[i].ID, eq.ID, start, end, "")
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case KindOf(err) == KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent reservation must win")
	assert.Equal(t, attempts-1, conflicts)

	var open int64
	require.NoError(t, gdb.Model(&model.Loan{}).
		Where("equipment_id = ? AND status IN ?", eq.ID, model.OpenLoanStatuses).
		Count(&open).Error)
	assert.EqualValues(t, 1, open)
}

func TestCheckout(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	student := seedUser(t, gdb, model.RoleStudent, true)
	eq := seedEquipment(t, gdb, model.EquipmentOnLoan)
	l := seedLoan(t, gdb, student.ID, eq.ID, model.LoanReserved, now.Add(time.Hour), now.Add(49*time.Hour))

	got, err := e.Checkout(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanActive, got.Status)
	require.NotNil(t, got.CheckoutAt)

	// Active loans cannot be checked out again.
	_, err = e.Checkout(ctx, l.ID)
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = e.Checkout(ctx, uuid.NewString())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestReturn(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	borrower := seedUser(t, gdb, model.RoleStudent, true)
	stranger := seedUser(t, gdb, model.RoleStudent, true)
	admin := seedUser(t, gdb, model.RoleAdmin, true)
	eq := seedEquipment(t, gdb, model.EquipmentOnLoan)
	l := seedLoan(t, gdb, borrower.ID, eq.ID, model.LoanActive, now.Add(-24*time.Hour), now.Add(24*time.Hour))

	// Another student may not return someone else's loan.
	_, err := e.Return(ctx, l.ID, "", stranger.ID)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	got, err := e.Return(ctx, l.ID, "one probe missing", borrower.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, got.Status)
	require.NotNil(t, got.ReturnedAt)
	assert.Equal(t, "one probe missing", got.ReturnRemarks)

	var gotEq model.Equipment
	require.NoError(t, gdb.First(&gotEq, "id = ?", eq.ID).Error)
	assert.Equal(t, model.EquipmentAvailable, gotEq.Status)

	// Returned is terminal.
	_, err = e.Return(ctx, l.ID, "", borrower.ID)
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
	_, err = e.Return(ctx, l.ID, "", admin.ID)
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
	_, err = e.Checkout(ctx, l.ID)
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestReturnByAdmin(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	borrower := seedUser(t, gdb, model.RoleStudent, true)
	admin := seedUser(t, gdb, model.RoleAdmin, true)
	eq := seedEquipment(t, gdb, model.EquipmentOnLoan)
	l := seedLoan(t, gdb, borrower.ID, eq.ID, model.LoanOverdue, now.Add(-72*time.Hour), now.Add(-24*time.Hour))

	got, err := e.Return(ctx, l.ID, "collected from lab", admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, got.Status)
}

func TestReturnKeepsEquipmentOnLoanWhenQueued(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	borrower := seedUser(t, gdb, model.RoleStudent, true)
	next := seedUser(t, gdb, model.RoleStudent, true)
	eq := seedEquipment(t, gdb, model.EquipmentOnLoan)

	current := seedLoan(t, gdb, borrower.ID, eq.ID, model.LoanActive, now.Add(-24*time.Hour), now.Add(24*time.Hour))
	seedLoan(t, gdb, next.ID, eq.ID, model.LoanReserved, now.Add(48*time.Hour), now.Add(96*time.Hour))

	_, err := e.Return(ctx, current.ID, "", borrower.ID)
	require.NoError(t, err)

	var gotEq model.Equipment
	require.NoError(t, gdb.First(&gotEq, "id = ?", eq.ID).Error)
	assert.Equal(t, model.EquipmentOnLoan, gotEq.Status, "queued reservation must keep the equipment on-loan")
}

func TestCheckOverdueLoansIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	borrower := seedUser(t, gdb, model.RoleStudent, true)
	eq := seedEquipment(t, gdb, model.EquipmentOnLoan)
	l := seedLoan(t, gdb, borrower.ID, eq.ID, model.LoanActive, now.Add(-96*time.Hour), now.Add(-48*time.Hour))

	returned := seedLoan(t, gdb, borrower.ID, seedEquipment(t, gdb, model.EquipmentAvailable).ID,
		model.LoanReturned, now.Add(-96*time.Hour), now.Add(-48*time.Hour))

	require.NoError(t, e.CheckOverdueLoans(ctx))

	var got model.Loan
	require.NoError(t, gdb.First(&got, "id = ?", l.ID).Error)
	assert.Equal(t, model.LoanOverdue, got.Status)
	assert.EqualValues(t, 1, countNotifications(t, gdb, borrower.ID, model.NotifyOverdue))

	// Repeated sweeps neither re-transition nor re-notify.
	require.NoError(t, e.CheckOverdueLoans(ctx))
	require.NoError(t, e.CheckOverdueLoans(ctx))

	require.NoError(t, gdb.First(&got, "id = ?", l.ID).Error)
	assert.Equal(t, model.LoanOverdue, got.Status)
	assert.EqualValues(t, 1, countNotifications(t, gdb, borrower.ID, model.NotifyOverdue))

	// Terminal loans are untouched.
	require.NoError(t, gdb.First(&got, "id = ?", returned.ID).Error)
	assert.Equal(t, model.LoanReturned, got.Status)
}

func TestRemindersOncePerDay(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	dueTomorrow := seedUser(t, gdb, model.RoleStudent, true)
	dueToday := seedUser(t, gdb, model.RoleStudent, true)
	overdue := seedUser(t, gdb, model.RoleStudent, true)

	seedLoan(t, gdb, dueTomorrow.ID, seedEquipment(t, gdb, model.EquipmentOnLoan).ID,
		model.LoanActive, now.Add(-48*time.Hour), now.Add(20*time.Hour))
	seedLoan(t, gdb, dueToday.ID, seedEquipment(t, gdb, model.EquipmentOnLoan).ID,
		model.LoanActive, now.Add(-48*time.Hour), now.Add(-time.Hour))
	overdueLoan := seedLoan(t, gdb, overdue.ID, seedEquipment(t, gdb, model.EquipmentOnLoan).ID,
		model.LoanActive, now.Add(-96*time.Hour), now.Add(-30*time.Hour))

	require.NoError(t, e.CheckAndSendReminders(ctx))

	assert.EqualValues(t, 1, countNotifications(t, gdb, dueTomorrow.ID, model.NotifyReminder))
	assert.EqualValues(t, 1, countNotifications(t, gdb, dueToday.ID, model.NotifyReminder))
	assert.EqualValues(t, 1, countNotifications(t, gdb, overdue.ID, model.NotifyOverdue))

	// The reminder sweep transitions overdue loans without waiting for the
	// overdue sweep.
	var got model.Loan
	require.NoError(t, gdb.First(&got, "id = ?", overdueLoan.ID).Error)
	assert.Equal(t, model.LoanOverdue, got.Status)

	// Same calendar day: everything deduplicates.
	require.NoError(t, e.CheckAndSendReminders(ctx))

	assert.EqualValues(t, 1, countNotifications(t, gdb, dueTomorrow.ID, model.NotifyReminder))
	assert.EqualValues(t, 1, countNotifications(t, gdb, dueToday.ID, model.NotifyReminder))
	assert.EqualValues(t, 1, countNotifications(t, gdb, overdue.ID, model.NotifyOverdue))
}

func TestOverdueSweepAndReminderSweepShareOneAlert(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Now().UTC()
	e, _ := newTestEngine(t, gdb, now)
	ctx := context.Background()

	borrower := seedUser(t, gdb, model.RoleStudent, true)
	seedLoan(t, gdb, borrower.ID, seedEquipment(t, gdb, model.EquipmentOnLoan).ID,
		model.LoanActive, now.Add(-96*time.Hour), now.Add(-30*time.Hour))

	require.NoError(t, e.CheckOverdueLoans(ctx))
	require.NoError(t, e.CheckAndSendReminders(ctx))

	assert.EqualValues(t, 1, countNotifications(t, gdb, borrower.ID, model.NotifyOverdue),
		"both sweeps must share a single overdue alert per day")
}

func TestCeilDays(t *testing.T) {
	const day = 24 * time.Hour
	assert.Equal(t, 3, ceilDays(3*day))
	assert.Equal(t, 3, ceilDays(2*day+time.Hour))
	assert.Equal(t, 1, ceilDays(time.Hour))
	assert.Equal(t, 0, ceilDays(0))
	assert.Equal(t, 0, ceilDays(-time.Hour))
	assert.Equal(t, -1, ceilDays(-25*time.Hour))
}
