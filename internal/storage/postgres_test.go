package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/variantlabs/variant-admin/pkg/models"
)

// newMockStore prepares all statements against a mock connection.
func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}

	mock.ExpectPrepare("INSERT INTO experiments")
	mock.ExpectPrepare("SELECT key, name, status, variants FROM experiments")
	mock.ExpectPrepare("ORDER BY created_at")
	mock.ExpectPrepare("UPDATE experiments")
	mock.ExpectPrepare("DELETE FROM experiments")
	mock.ExpectPrepare("INSERT INTO variant_stats")
	mock.ExpectPrepare("SELECT variant, exposures, conversions FROM variant_stats")
	mock.ExpectPrepare("DELETE FROM variant_stats")

	store, err := NewPostgresStoreFromDB(db)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store, mock, func() { db.Close() }
}

func TestPostgresCreate(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO experiments").
		WithArgs(
			sqlmock.AnyArg(), // id
			"app1",
			"checkout_test",
			"Checkout Test",
			"active",
			sqlmock.AnyArg(), // variants JSON
			sqlmock.AnyArg(), // created_at
			sqlmock.AnyArg(), // updated_at
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	exp := &models.Experiment{
		Key:    "checkout_test",
		Name:   "Checkout Test",
		Status: models.StatusActive,
		Variants: []models.Variant{
			{Name: "Control", Value: "control", TrafficPercentage: 50},
			{Name: "Variant B", Value: "variant b", TrafficPercentage: 50},
		},
	}
	if err := store.Create(context.Background(), "app1", exp); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCreateValidation(t *testing.T) {
	store, _, cleanup := newMockStore(t)
	defer cleanup()

	if err := store.Create(context.Background(), "", &models.Experiment{Key: "x"}); err == nil {
		t.Fatal("expected error for missing app id")
	}
	if err := store.Create(context.Background(), "app1", &models.Experiment{}); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestPostgresGet(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"key", "name", "status", "variants"}).
		AddRow("checkout_test", "Checkout Test", "active",
			[]byte(`[{"name":"Control","value":"control","traffic_percentage":50}]`))
	mock.ExpectQuery("SELECT key, name, status, variants FROM experiments").
		WithArgs("app1", "checkout_test").
		WillReturnRows(rows)

	exp, err := store.Get(context.Background(), "app1", "checkout_test")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if exp.Name != "Checkout Test" || exp.Status != models.StatusActive {
		t.Fatalf("unexpected experiment: %+v", exp)
	}
	if len(exp.Variants) != 1 || exp.Variants[0].TrafficPercentage != 50 {
		t.Fatalf("unexpected variants: %+v", exp.Variants)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT key, name, status, variants FROM experiments").
		WithArgs("app1", "missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Get(context.Background(), "app1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPostgresList(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"key", "name", "status", "variants"}).
		AddRow("exp1", "First", "active", []byte(`[]`)).
		AddRow("exp2", "Second", "paused", []byte(`[]`))
	mock.ExpectQuery("ORDER BY created_at").
		WithArgs("app1").
		WillReturnRows(rows)

	list, err := store.List(context.Background(), "app1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Key != "exp1" || list[1].Status != models.StatusPaused {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestPostgresUpdate(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE experiments").
		WithArgs("paused", sqlmock.AnyArg(), sqlmock.AnyArg(), "app1", "exp1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Update(context.Background(), "app1", "exp1", models.StatusPaused, []models.Variant{
		{Name: "Control", Value: "control", TrafficPercentage: 100},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestPostgresUpdateNotFound(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE experiments").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), "app1", "missing", models.StatusActive, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPostgresDelete(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM experiments").
		WithArgs("app1", "exp1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), "app1", "exp1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestPostgresRecord(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO variant_stats").
		WithArgs("app1", "exp1", "control", 1, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO variant_stats").
		WithArgs("app1", "exp1", "control", 0, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Record(context.Background(), "app1", "exp1", "control", EventExposure); err != nil {
		t.Fatalf("Record exposure failed: %v", err)
	}
	if err := store.Record(context.Background(), "app1", "exp1", "control", EventConversion); err != nil {
		t.Fatalf("Record conversion failed: %v", err)
	}
	if err := store.Record(context.Background(), "app1", "exp1", "control", EventType("bogus")); err == nil {
		t.Fatal("expected error for invalid event type")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSummary(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"variant", "exposures", "conversions"}).
		AddRow("control", 100, 10).
		AddRow("variant_b", 100, 20)
	mock.ExpectQuery("SELECT variant, exposures, conversions FROM variant_stats").
		WithArgs("app1", "exp1").
		WillReturnRows(rows)

	summary, err := store.Summary(context.Background(), "app1", "exp1")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(summary.AggregatedVariants) != 2 {
		t.Fatalf("summary has %d variants, want 2", len(summary.AggregatedVariants))
	}
	rec := summary.AggregatedVariants[1]
	if rec.ID != "variant_b" || rec.Count != 100 || rec.Conversions != 20 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestPostgresReset(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM variant_stats").
		WithArgs("app1", "exp1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := store.Reset(context.Background(), "app1", "exp1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
}
