package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliosys-backend/internal/config"
	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/jobs"
	"bibliosys-backend/internal/repository/memory"
	"bibliosys-backend/internal/service"
)

func newRunner(spec string) *jobs.JobRunner {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{ReportOverdueLoans: spec}}
	loans := service.NewLoanRegister(memory.NewStore(), domain.DefaultLoanPolicy())
	return jobs.NewJobRunner(&jobs.Services{Loans: loans}, cfg)
}

func TestNewScheduler_RegistersNightlyReport(t *testing.T) {
	s, err := NewScheduler(newRunner("0 0 2 * * *"))
	require.NoError(t, err)

	entries := s.Entries()
	require.Len(t, entries, 1)

	from := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 2, 2, 0, 0, 0, time.UTC), entries[0].Schedule.Next(from))
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler(newRunner("every night"))
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler(newRunner("@every 1h"))
	require.NoError(t, err)
	s.Start()
	s.Stop()
}
