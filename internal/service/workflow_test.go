package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/repository/memory"
)

type fixture struct {
	store     *memory.Store
	now       time.Time
	workflow  RequestWorkflow
	inventory InventoryLedger
	loans     LoanRegister
	archive   ArchivalStore
	librarian domain.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		now:       time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		librarian: domain.Principal{AccountID: 1, Role: domain.RoleLibrarian},
	}
	clock := Clock(func() time.Time { return f.now })
	f.inventory = NewInventoryLedger(f.store, clock)
	f.loans = NewLoanRegister(f.store, domain.DefaultLoanPolicy())
	f.archive = NewArchivalStore(f.store, clock)
	f.workflow = NewRequestWorkflow(f.store, f.inventory, f.loans, f.archive, clock)
	return f
}

func (f *fixture) item(t *testing.T, copies int32) *domain.Item {
	t.Helper()
	item, err := f.inventory.AddStock(context.Background(), f.librarian, "The Left Hand of Darkness", copies)
	require.NoError(t, err)
	return item
}

func (f *fixture) reader(t *testing.T, name string) domain.Principal {
	t.Helper()
	ctx := context.Background()
	account := &domain.Account{Username: name, Role: domain.RoleReader, IsActive: true}
	require.NoError(t, f.store.Accounts().Create(ctx, account))
	reader := &domain.Reader{
		AccountID:        account.ID,
		FirstName:        name,
		LastName:         "Reader",
		Email:            name + "@example.org",
		MembershipNumber: "MEM-" + name,
		Status:           domain.ReaderStatusActive,
	}
	require.NoError(t, f.store.Readers().Create(ctx, reader))
	return account.Principal(&reader.ID)
}

func (f *fixture) available(t *testing.T, itemID int64) int32 {
	t.Helper()
	item, err := f.inventory.GetItem(context.Background(), itemID)
	require.NoError(t, err)
	return item.AvailableCopies
}

func (f *fixture) borrow(t *testing.T, p domain.Principal, itemID int64) *domain.Loan {
	t.Helper()
	ctx := context.Background()
	req, err := f.workflow.SubmitBorrow(ctx, p, itemID, "")
	require.NoError(t, err)
	decision, err := f.workflow.DecideBorrow(ctx, f.librarian, req.ID, domain.DecisionApprove, "")
	require.NoError(t, err)
	require.NotNil(t, decision.Loan)
	return decision.Loan
}

func TestDecideBorrow_ApprovalOpensLoan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 2)
	r1 := f.reader(t, "ursula")

	req, err := f.workflow.SubmitBorrow(ctx, r1, item.ID, "book club")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, req.Status)

	decision, err := f.workflow.DecideBorrow(ctx, f.librarian, req.ID, domain.DecisionApprove, "")
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusApproved, decision.Request.Status)
	require.NotNil(t, decision.Loan)
	assert.Equal(t, domain.LoanStatusActive, decision.Loan.Status)
	assert.Equal(t, f.now.Add(28*24*time.Hour), decision.Loan.DueAt)
	assert.Equal(t, *r1.ReaderID, decision.Loan.BorrowerID)
	assert.Equal(t, int32(1), f.available(t, item.ID))

	stored, err := f.store.BorrowRequests().GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, stored.Status)
	require.NotNil(t, stored.DecidedBy)
	assert.Equal(t, f.librarian.AccountID, *stored.DecidedBy)
}

func TestDecideBorrow_LastCopyGoesToFirstApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	r1, r2 := f.reader(t, "ann"), f.reader(t, "bob")

	b1, err := f.workflow.SubmitBorrow(ctx, r1, item.ID, "")
	require.NoError(t, err)
	b2, err := f.workflow.SubmitBorrow(ctx, r2, item.ID, "")
	require.NoError(t, err)

	first, err := f.workflow.DecideBorrow(ctx, f.librarian, b1.ID, domain.DecisionApprove, "")
	require.NoError(t, err)
	second, err := f.workflow.DecideBorrow(ctx, f.librarian, b2.ID, domain.DecisionApprove, "")
	require.NoError(t, err, "exhaustion must not surface as an error")

	assert.Equal(t, domain.RequestStatusApproved, first.Request.Status)
	assert.Equal(t, domain.RequestStatusRejected, second.Request.Status)
	assert.Equal(t, domain.NoteNoCopiesAvailable, second.Request.DecisionNote)
	assert.Nil(t, second.Loan)
	assert.Equal(t, int32(0), f.available(t, item.ID))

	loans, err := f.store.Loans().ListByBorrower(ctx, *r2.ReaderID)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestDecideBorrow_ConcurrentApprovalsOnLastCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)

	const contenders = 8
	requests := make([]int64, contenders)
	readers := make([]domain.Principal, contenders)
	for i := range requests {
		readers[i] = f.reader(t, fmt.Sprintf("reader%d", i))
		req, err := f.workflow.SubmitBorrow(ctx, readers[i], item.ID, "")
		require.NoError(t, err)
		requests[i] = req.ID
	}

	results := make([]*BorrowDecision, contenders)
	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.workflow.DecideBorrow(ctx, f.librarian, requests[i], domain.DecisionApprove, "")
		}(i)
	}
	wg.Wait()

	approved := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Request.Status == domain.RequestStatusApproved {
			approved++
			assert.NotNil(t, results[i].Loan)
		} else {
			assert.Equal(t, domain.RequestStatusRejected, results[i].Request.Status)
			assert.Nil(t, results[i].Loan)
		}
	}
	assert.Equal(t, 1, approved)
	assert.Equal(t, int32(0), f.available(t, item.ID))
}

func TestDecideBorrow_SameRequestDecidedConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 5)
	r := f.reader(t, "carol")
	req, err := f.workflow.SubmitBorrow(ctx, r, item.ID, "")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		decided int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.workflow.DecideBorrow(ctx, f.librarian, req.ID, domain.DecisionApprove, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAlreadyDecided):
				decided++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 4, decided)
	assert.Equal(t, int32(4), f.available(t, item.ID))
}

func TestDecideBorrow_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	r := f.reader(t, "dan")
	req, err := f.workflow.SubmitBorrow(ctx, r, item.ID, "")
	require.NoError(t, err)

	t.Run("ReaderCannotDecide", func(t *testing.T) {
		_, err := f.workflow.DecideBorrow(ctx, r, req.ID, domain.DecisionApprove, "")
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
		assert.Equal(t, int32(1), f.available(t, item.ID))
	})

	t.Run("UnknownRequest", func(t *testing.T) {
		_, err := f.workflow.DecideBorrow(ctx, f.librarian, 4040, domain.DecisionApprove, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("RejectHasNoSideEffects", func(t *testing.T) {
		decision, err := f.workflow.DecideBorrow(ctx, f.librarian, req.ID, domain.DecisionReject, "reference only")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusRejected, decision.Request.Status)
		assert.Nil(t, decision.Loan)
		assert.Equal(t, int32(1), f.available(t, item.ID))
	})

	t.Run("AlreadyDecided", func(t *testing.T) {
		_, err := f.workflow.DecideBorrow(ctx, f.librarian, req.ID, domain.DecisionApprove, "")
		assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
		assert.Equal(t, int32(1), f.available(t, item.ID))
	})
}

func TestSubmitBorrow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	r := f.reader(t, "erin")

	first, err := f.workflow.SubmitBorrow(ctx, r, item.ID, "")
	require.NoError(t, err)

	t.Run("DuplicatePending", func(t *testing.T) {
		_, err := f.workflow.SubmitBorrow(ctx, r, item.ID, "")
		assert.ErrorIs(t, err, domain.ErrDuplicate)
	})

	t.Run("AllowedAgainOnceDecided", func(t *testing.T) {
		_, err := f.workflow.DecideBorrow(ctx, f.librarian, first.ID, domain.DecisionReject, "")
		require.NoError(t, err)
		_, err = f.workflow.SubmitBorrow(ctx, r, item.ID, "")
		assert.NoError(t, err)
	})

	t.Run("UnknownItem", func(t *testing.T) {
		_, err := f.workflow.SubmitBorrow(ctx, r, 999, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("LibrarianWithoutProfile", func(t *testing.T) {
		_, err := f.workflow.SubmitBorrow(ctx, f.librarian, item.ID, "")
		assert.ErrorIs(t, err, domain.ErrNoReaderProfile)
	})
}

func TestListPendingBorrowRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.item(t, 1), f.item(t, 1)
	r := f.reader(t, "fay")
	_, err := f.workflow.SubmitBorrow(ctx, r, a.ID, "")
	require.NoError(t, err)
	_, err = f.workflow.SubmitBorrow(ctx, r, b.ID, "")
	require.NoError(t, err)

	all, total, err := f.workflow.ListPendingBorrowRequests(ctx, f.librarian, domain.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), total)
	assert.Len(t, all, 2)

	onlyB, _, err := f.workflow.ListPendingBorrowRequests(ctx, f.librarian, domain.RequestFilter{ItemID: b.ID})
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, b.ID, onlyB[0].ItemID)

	_, _, err = f.workflow.ListPendingBorrowRequests(ctx, r, domain.RequestFilter{})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestDecideReturn_LateReturnChargesFine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	r := f.reader(t, "gil")
	loan := f.borrow(t, r, item.ID)
	assert.Equal(t, int32(0), f.available(t, item.ID))

	f.now = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	ret, err := f.workflow.SubmitReturn(ctx, r, loan.ID, "")
	require.NoError(t, err)

	decision, err := f.workflow.DecideReturn(ctx, f.librarian, ret.ID, domain.DecisionApprove, time.Time{}, "")
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusApproved, decision.Request.Status)
	require.NotNil(t, decision.Loan)
	assert.Equal(t, domain.LoanStatusClosedLate, decision.Loan.Status)
	assert.Equal(t, "3.00", decision.Loan.FineAmount.StringFixed(2))
	assert.Equal(t, int32(1), f.available(t, item.ID))

	entry, err := f.store.Archive().GetByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, decision.ArchiveEntryID, entry.ID)
	assert.Equal(t, domain.LoanStatusClosedLate, entry.Status)
	assert.Contains(t, string(entry.Snapshot), `"status":"CLOSED_LATE"`)

	stored, err := f.store.Loans().GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusClosedLate, stored.Status)
}

func TestDecideReturn_ExplicitReturnedAtOnTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	r := f.reader(t, "hal")
	loan := f.borrow(t, r, item.ID)

	ret, err := f.workflow.SubmitReturn(ctx, r, loan.ID, "")
	require.NoError(t, err)
	f.now = f.now.Add(60 * 24 * time.Hour)

	decision, err := f.workflow.DecideReturn(ctx, f.librarian, ret.ID, domain.DecisionApprove, loan.DueAt, "")
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusClosedOnTime, decision.Loan.Status)
	assert.True(t, decision.Loan.FineAmount.IsZero())
}

func TestDecideReturn_RejectKeepsLoanActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	r := f.reader(t, "ivy")
	loan := f.borrow(t, r, item.ID)
	ret, err := f.workflow.SubmitReturn(ctx, r, loan.ID, "")
	require.NoError(t, err)

	decision, err := f.workflow.DecideReturn(ctx, f.librarian, ret.ID, domain.DecisionReject, time.Time{}, "not received")
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusRejected, decision.Request.Status)
	assert.Nil(t, decision.Loan)
	assert.Equal(t, int32(0), f.available(t, item.ID))
	stored, err := f.store.Loans().GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, stored.Status)

	// a fresh return request is accepted after the rejection
	_, err = f.workflow.SubmitReturn(ctx, r, loan.ID, "")
	assert.NoError(t, err)
}

func TestSubmitReturn_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 2)
	owner, other := f.reader(t, "jo"), f.reader(t, "kim")
	loan := f.borrow(t, owner, item.ID)

	t.Run("NotOwner", func(t *testing.T) {
		_, err := f.workflow.SubmitReturn(ctx, other, loan.ID, "")
		assert.ErrorIs(t, err, domain.ErrNotOwner)
		pending, _, err := f.workflow.ListPendingReturnRequests(ctx, f.librarian, domain.RequestFilter{})
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("UnknownLoan", func(t *testing.T) {
		_, err := f.workflow.SubmitReturn(ctx, owner, 777, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DuplicatePending", func(t *testing.T) {
		_, err := f.workflow.SubmitReturn(ctx, owner, loan.ID, "")
		require.NoError(t, err)
		_, err = f.workflow.SubmitReturn(ctx, owner, loan.ID, "")
		assert.ErrorIs(t, err, domain.ErrDuplicate)
	})

	t.Run("LoanNotActive", func(t *testing.T) {
		pending, _, err := f.workflow.ListPendingReturnRequests(ctx, f.librarian, domain.RequestFilter{LoanID: loan.ID})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		_, err = f.workflow.DecideReturn(ctx, f.librarian, pending[0].ID, domain.DecisionApprove, time.Time{}, "")
		require.NoError(t, err)

		_, err = f.workflow.SubmitReturn(ctx, owner, loan.ID, "")
		assert.ErrorIs(t, err, domain.ErrLoanNotActive)
	})
}

func TestSubmitReturn_ConcurrentSubmissionsKeepOnePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	owner := f.reader(t, "lou")
	loan := f.borrow(t, owner, item.ID)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		duplicate int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.workflow.SubmitReturn(ctx, owner, loan.ID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrDuplicate):
				duplicate++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 4, duplicate)
	pending, total, err := f.workflow.ListPendingReturnRequests(ctx, f.librarian, domain.RequestFilter{LoanID: loan.ID})
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	assert.Len(t, pending, 1)
}

func TestSuspendedReader_TokenNoLongerLends(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 2)
	r := f.reader(t, "mae")
	loan := f.borrow(t, r, item.ID)
	queued, err := f.workflow.SubmitBorrow(ctx, r, f.item(t, 1).ID, "")
	require.NoError(t, err)

	// the principal (and any token carrying it) outlives the status change
	require.NoError(t, f.store.Readers().UpdateStatus(ctx, *r.ReaderID, domain.ReaderStatusSuspended))

	t.Run("SubmitBorrow", func(t *testing.T) {
		_, err := f.workflow.SubmitBorrow(ctx, r, item.ID, "")
		assert.ErrorIs(t, err, domain.ErrAccountInactive)
	})

	t.Run("SubmitReturn", func(t *testing.T) {
		_, err := f.workflow.SubmitReturn(ctx, r, loan.ID, "")
		assert.ErrorIs(t, err, domain.ErrAccountInactive)
	})

	t.Run("ApprovalRefused", func(t *testing.T) {
		_, err := f.workflow.DecideBorrow(ctx, f.librarian, queued.ID, domain.DecisionApprove, "")
		assert.ErrorIs(t, err, domain.ErrAccountInactive)

		stored, err := f.store.BorrowRequests().GetByID(ctx, queued.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPending, stored.Status)
		assert.Equal(t, int32(1), f.available(t, queued.ItemID))
	})

	t.Run("RejectionStillAllowed", func(t *testing.T) {
		decision, err := f.workflow.DecideBorrow(ctx, f.librarian, queued.ID, domain.DecisionReject, "suspended")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusRejected, decision.Request.Status)
	})

	t.Run("ReactivatedReaderLendsAgain", func(t *testing.T) {
		require.NoError(t, f.store.Readers().UpdateStatus(ctx, *r.ReaderID, domain.ReaderStatusActive))
		_, err := f.workflow.SubmitReturn(ctx, r, loan.ID, "")
		assert.NoError(t, err)
	})
}

func TestDecideReturn_OverReturnRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	r := f.reader(t, "lee")

	// A loan that never reserved its copy: the shelf already holds every copy.
	loan := domain.NewLoan(item.ID, *r.ReaderID, f.now, time.Time{}, f.loans.Policy())
	require.NoError(t, f.store.Loans().Create(ctx, loan))
	ret, err := f.workflow.SubmitReturn(ctx, r, loan.ID, "")
	require.NoError(t, err)

	_, err = f.workflow.DecideReturn(ctx, f.librarian, ret.ID, domain.DecisionApprove, time.Time{}, "")
	require.Error(t, err)
	assert.True(t, domain.IsInvariantViolation(err))

	stored, err := f.store.Loans().GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, stored.Status)
	req, err := f.store.ReturnRequests().GetByID(ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	_, err = f.store.Archive().GetByLoanID(ctx, loan.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(1), f.available(t, item.ID))
}

func TestDecideReturn_SecondDecisionFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	r := f.reader(t, "max")
	loan := f.borrow(t, r, item.ID)
	ret, err := f.workflow.SubmitReturn(ctx, r, loan.ID, "")
	require.NoError(t, err)

	_, err = f.workflow.DecideReturn(ctx, f.librarian, ret.ID, domain.DecisionApprove, time.Time{}, "")
	require.NoError(t, err)
	_, err = f.workflow.DecideReturn(ctx, f.librarian, ret.ID, domain.DecisionApprove, time.Time{}, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)

	assert.Equal(t, int32(1), f.available(t, item.ID))
	entries, total, err := f.archive.List(ctx, f.librarian, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	assert.Len(t, entries, 1)
}

func TestIsOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 1)
	r := f.reader(t, "ned")
	loan := f.borrow(t, r, item.ID)

	overdue, err := f.workflow.IsOverdue(ctx, loan.ID, loan.DueAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, overdue)

	overdue, err = f.workflow.IsOverdue(ctx, loan.ID, loan.DueAt.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, overdue)

	stored, err := f.store.Loans().GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, stored.Status, "reading overdue status must not write")

	overdueLoans, err := f.loans.ListOverdue(ctx, loan.DueAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, overdueLoans, 1)

	mine, err := f.loans.ListBorrowerLoans(ctx, r)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
