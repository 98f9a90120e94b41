//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliosys-backend/internal/config"
	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/repository"
	"bibliosys-backend/internal/service"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "../../../config/config.test.yaml", "path to config file")
}

func prepareDB(t *testing.T) *sql.DB {
	t.Helper()
	if !flag.Parsed() {
		flag.Parse()
	}

	finalPath := configPath
	if _, err := os.Stat(finalPath); os.IsNotExist(err) {
		alt := filepath.Join("..", "..", "..", "config", "config.dev.yaml")
		if _, err := os.Stat(alt); err == nil {
			finalPath = alt
		}
	}
	cfg, err := config.Load(finalPath)
	require.NoError(t, err, "load config from %s", finalPath)

	var db *sql.DB
	// Retry connection as DB might still be starting up
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
		}
		time.Sleep(2 * time.Second)
	}
	require.NoError(t, err, "connect to database")
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE loan_archive, return_requests, loans, borrow_requests, items, readers, accounts RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func seedReader(t *testing.T, store *Store, name string) domain.Principal {
	t.Helper()
	ctx := context.Background()
	account := &domain.Account{Username: name, PasswordHash: "x", Role: domain.RoleReader, IsActive: true, CreatedAt: time.Now()}
	require.NoError(t, store.Accounts().Create(ctx, account))
	reader := &domain.Reader{
		AccountID:        account.ID,
		FirstName:        name,
		LastName:         "Integration",
		Email:            name + "@example.org",
		MembershipNumber: "MEM-" + name,
		Status:           domain.ReaderStatusActive,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	require.NoError(t, store.Readers().Create(ctx, reader))
	return account.Principal(&reader.ID)
}

func TestLastCopyRace_Integration(t *testing.T) {
	ctx := context.Background()
	store := NewStore(prepareDB(t))
	librarian := domain.Principal{AccountID: 1, Role: domain.RoleLibrarian}

	inventory := service.NewInventoryLedger(store, nil)
	loans := service.NewLoanRegister(store, domain.DefaultLoanPolicy())
	archive := service.NewArchivalStore(store, nil)
	workflow := service.NewRequestWorkflow(store, inventory, loans, archive, nil)

	item, err := inventory.AddStock(ctx, librarian, "Solaris", 1)
	require.NoError(t, err)

	const contenders = 5
	requestIDs := make([]int64, contenders)
	for i := range requestIDs {
		p := seedReader(t, store, fmt.Sprintf("reader%d", i))
		req, err := workflow.SubmitBorrow(ctx, p, item.ID, "")
		require.NoError(t, err)
		requestIDs[i] = req.ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
	)
	for _, id := range requestIDs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			res, err := workflow.DecideBorrow(ctx, librarian, id, domain.DecisionApprove, "")
			if !assert.NoError(t, err) {
				return
			}
			if res.Request.Status == domain.RequestStatusApproved {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, approved)
	stored, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stored.AvailableCopies)
}

func TestReturnArchivesOnce_Integration(t *testing.T) {
	ctx := context.Background()
	store := NewStore(prepareDB(t))
	librarian := domain.Principal{AccountID: 1, Role: domain.RoleLibrarian}
	reader := seedReader(t, store, "ada")

	inventory := service.NewInventoryLedger(store, nil)
	loans := service.NewLoanRegister(store, domain.DefaultLoanPolicy())
	archive := service.NewArchivalStore(store, nil)
	workflow := service.NewRequestWorkflow(store, inventory, loans, archive, nil)

	item, err := inventory.AddStock(ctx, librarian, "Roadside Picnic", 1)
	require.NoError(t, err)
	borrow, err := workflow.SubmitBorrow(ctx, reader, item.ID, "")
	require.NoError(t, err)
	decided, err := workflow.DecideBorrow(ctx, librarian, borrow.ID, domain.DecisionApprove, "")
	require.NoError(t, err)
	require.NotNil(t, decided.Loan)

	ret, err := workflow.SubmitReturn(ctx, reader, decided.Loan.ID, "")
	require.NoError(t, err)
	result, err := workflow.DecideReturn(ctx, librarian, ret.ID, domain.DecisionApprove, time.Time{}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusClosedOnTime, result.Loan.Status)

	var archivedID int64
	err = store.WithinTx(ctx, func(tx repository.Repos) error {
		var err error
		archivedID, err = archive.Record(ctx, tx, *result.Loan)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, result.ArchiveEntryID, archivedID)

	stored, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.AvailableCopies)
}
