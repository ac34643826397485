package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OpenNSW/taskrunner/internal/task/model"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.Models()...))
	return db
}

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func newTask(name string) *model.Task {
	return &model.Task{Name: name, Command: "echo " + name}
}

func TestNewStores_NilDB(t *testing.T) {
	_, err := NewTaskStore(nil)
	assert.Error(t, err)
	_, err = NewExecutionStore(nil)
	assert.Error(t, err)
}

func TestTaskStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s, err := NewTaskStore(setupSQLite(t))
	require.NoError(t, err)

	task := newTask("hello")
	require.NoError(t, s.Create(ctx, task))
	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.False(t, task.CreatedAt.IsZero())

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Name)
	assert.Equal(t, "echo hello", got.Command)

	require.NoError(t, s.Delete(ctx, task.ID))

	_, err = s.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Delete(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskStore_List(t *testing.T) {
	ctx := context.Background()
	s, err := NewTaskStore(setupSQLite(t))
	require.NoError(t, err)

	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, s.Create(ctx, newTask(name)))
	}

	page, err := s.List(ctx, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalCount)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 20, page.Limit)

	offset, limit := 1, 1
	page, err = s.List(ctx, &offset, &limit)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalCount)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Limit)
}

func TestTaskStore_FindByName(t *testing.T) {
	ctx := context.Background()
	s, err := NewTaskStore(setupSQLite(t))
	require.NoError(t, err)

	for _, name := range []string{"Build Report", "nightly-report", "cleanup", "100%_done"} {
		require.NoError(t, s.Create(ctx, newTask(name)))
	}

	found, err := s.FindByName(ctx, "REPORT")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Build Report", found[0].Name)
	assert.Equal(t, "nightly-report", found[1].Name)

	found, err = s.FindByName(ctx, "%")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100%_done", found[0].Name)

	found, err = s.FindByName(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTaskStore_GetByID_Postgres(t *testing.T) {
	db, mock := setupTestDB(t)
	s, err := NewTaskStore(db)
	require.NoError(t, err)

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "command"}).AddRow(id.String(), "hello", "echo hello"))

	task, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, "echo hello", task.Command)

	mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = s.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_FindByName_Postgres(t *testing.T) {
	db, mock := setupTestDB(t)
	s, err := NewTaskStore(db)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE LOWER\(name\) LIKE \$1`).
		WithArgs(`%a\_b%`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	found, err := s.FindByName(context.Background(), "A_B")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionStore_SaveAndList(t *testing.T) {
	ctx := context.Background()
	s, err := NewExecutionStore(setupSQLite(t))
	require.NoError(t, err)

	taskID := uuid.New()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		exec := &model.Execution{
			TaskID:     taskID,
			CommandRun: "echo hello",
			Output:     "hello",
			Success:    true,
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Save(ctx, exec))
		assert.NotEqual(t, uuid.Nil, exec.ID)
	}
	require.NoError(t, s.Save(ctx, &model.Execution{TaskID: uuid.New(), CommandRun: "echo other"}))

	list, err := s.ListByTaskID(ctx, taskID, nil, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].ExecutedAt.After(list[1].ExecutedAt))
	assert.True(t, list[1].ExecutedAt.After(list[2].ExecutedAt))

	got, err := s.GetByID(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Output)
	assert.True(t, got.Success)

	_, err = s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecutionStore_SetsExecutedAt(t *testing.T) {
	s, err := NewExecutionStore(setupSQLite(t))
	require.NoError(t, err)

	exec := &model.Execution{TaskID: uuid.New(), CommandRun: "echo hi"}
	require.NoError(t, s.Save(context.Background(), exec))
	assert.False(t, exec.ExecutedAt.IsZero())
}

func TestExecutionStore_Save_Postgres(t *testing.T) {
	db, mock := setupTestDB(t)
	s, err := NewExecutionStore(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "task_executions"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	exec := &model.Execution{TaskID: uuid.New(), CommandRun: "echo hi", Output: "hi", Success: true}
	require.NoError(t, s.Save(context.Background(), exec))
	assert.NotEqual(t, uuid.Nil, exec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
