package journal

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"tradestop/pkg/types"
)

func newMockJournal(t *testing.T) (*Journal, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to create gorm DB: %v", err)
	}

	return &Journal{db: gormDB}, mock
}

func TestJournalAppendInsertsRow(t *testing.T) {
	t.Parallel()

	j, mock := newMockJournal(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `closed_trades`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := types.ClosedTradeRecord{
		Symbol:     "adausdt",
		EntryPrice: "4.50",
		ClosePrice: "4.55",
		Direction:  "LONG",
		Quantity:   "100",
		Leverage:   "10",
		CreatedAt:  time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	}

	if err := j.Append(record); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJournalAppendStampsCreatedAtWhenZero(t *testing.T) {
	t.Parallel()

	j, mock := newMockJournal(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `closed_trades`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := types.ClosedTradeRecord{Symbol: "adausdt"}
	if record.CreatedAt.IsZero() == false {
		t.Fatal("test fixture should start with a zero CreatedAt")
	}

	if err := j.Append(record); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJournalAppendPropagatesDBError(t *testing.T) {
	t.Parallel()

	j, mock := newMockJournal(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `closed_trades`").
		WillReturnError(gorm.ErrInvalidData)
	mock.ExpectRollback()

	err := j.Append(types.ClosedTradeRecord{Symbol: "adausdt"})
	if err == nil {
		t.Fatal("Append() error = nil, want non-nil")
	}
}

func TestJournalListAppliesFilterConstraints(t *testing.T) {
	t.Parallel()

	newRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "symbol", "entry_price", "close_price", "direction", "quantity", "leverage", "created_at"}).
			AddRow(1, "adausdt", "4.50", "4.55", "LONG", "100", "10", time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	}

	tests := []struct {
		name   string
		filter Filter
		query  string
	}{
		{
			name:   "no constraints",
			filter: Filter{},
			query:  "SELECT \\* FROM `closed_trades` ORDER BY created_at DESC",
		},
		{
			name:   "symbol only",
			filter: Filter{Symbol: "adausdt"},
			query:  "SELECT \\* FROM `closed_trades` WHERE symbol = \\? ORDER BY created_at DESC",
		},
		{
			name:   "full window",
			filter: Filter{Symbol: "adausdt", Start: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)},
			query:  "SELECT \\* FROM `closed_trades` WHERE symbol = \\? AND created_at >= \\? AND created_at <= \\? ORDER BY created_at DESC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			j, mock := newMockJournal(t)
			mock.ExpectQuery(tt.query).WillReturnRows(newRows())

			got, err := j.List(tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("len(List()) = %d, want 1", len(got))
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}
