package data

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"traininglog/lib/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionColumnNames = []string{
	"id", "owner_id", "request_id", "start_time", "end_time", "exercise_type_id",
	"set_count", "repetitions", "work_seconds", "rest_seconds",
}

func newTrainingSessionDao(t *testing.T) (*TrainingSessionDao, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &TrainingSessionDao{
		DB:     sqlx.NewDb(db, "postgres"),
		Schema: "mateo",
		Logger: logrus.New(),
	}, mock
}

func sessionRow(rows *sqlmock.Rows, id int64, owner string, start time.Time) *sqlmock.Rows {
	return rows.AddRow(id, owner, uuid.NewString(), start, start.Add(time.Hour), nil, int64(4), int64(10), int64(40), int64(20))
}

func TestTrainingSessionDao_List(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)
	from := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "mateo".training_session`)).
		WithArgs("u1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	rows := sqlmock.NewRows(sessionColumnNames)
	sessionRow(rows, 1, "u1", start)
	sessionRow(rows, 2, "u1", start.Add(2*time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY start_time ASC, id ASC LIMIT $4 OFFSET $5`)).
		WithArgs("u1", from, to, 2, 0).
		WillReturnRows(rows)

	page, err := dao.ListTrainingSessions(context.Background(), "u1", from, to, models.NewPageRequest(1, 2))

	require.NoError(t, err)
	require.Len(t, page.Sessions, 2)
	assert.Equal(t, int64(1), page.Sessions[0].ID)
	assert.Equal(t, "u1", page.Sessions[0].OwnerID)
	assert.Nil(t, page.Sessions[0].ExerciseTypeID)
	require.NotNil(t, page.Sessions[0].SetCount)
	assert.Equal(t, int16(4), *page.Sessions[0].SetCount)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_List_Empty(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)
	from := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	to := from.Add(48 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WithArgs("u2", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`LIMIT $4 OFFSET $5`)).
		WithArgs("u2", from, to, 25, 0).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames))

	page, err := dao.ListTrainingSessions(context.Background(), "u2", from, to, models.NewPageRequest(0, 0))

	require.NoError(t, err)
	assert.NotNil(t, page.Sessions)
	assert.Empty(t, page.Sessions)
	assert.Equal(t, 0, page.TotalPages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_List_Failure(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).WillReturnError(errors.New("connection reset"))

	_, err := dao.ListTrainingSessions(context.Background(), "u1", now, now, models.NewPageRequest(1, 25))

	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Get_NotFound(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND owner_id = $2`)).
		WithArgs(int64(9), "u1").
		WillReturnRows(sqlmock.NewRows(sessionColumnNames))

	_, err := dao.GetTrainingSession(context.Background(), 9, "u1")

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Create(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	requestID := uuid.New()
	req := &models.TrainingSessionRequest{RequestID: &requestID, Start: start, End: start.Add(time.Hour)}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "mateo".training_session`)).
		WithArgs("u1", sqlmock.AnyArg(), start, start.Add(time.Hour), nil, nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).
			AddRow(int64(7), "u1", requestID.String(), start, start.Add(time.Hour), nil, nil, nil, nil, nil))

	created, err := dao.CreateTrainingSession(context.Background(), "u1", req)

	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, requestID, created.RequestID)
	assert.Equal(t, "u1", created.OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Create_DuplicateRequest(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	requestID := uuid.New()
	req := &models.TrainingSessionRequest{RequestID: &requestID, Start: start, End: start.Add(time.Hour)}

	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (request_id) DO NOTHING`)).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE request_id = $1`)).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).
			AddRow(int64(7), "u1", requestID.String(), start, start.Add(time.Hour), nil, nil, nil, nil, nil))

	created, err := dao.CreateTrainingSession(context.Background(), "u1", req)

	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Create_RequestOfAnotherOwner(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	requestID := uuid.New()
	req := &models.TrainingSessionRequest{RequestID: &requestID, Start: start, End: start}

	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (request_id) DO NOTHING`)).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE request_id = $1`)).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).
			AddRow(int64(7), "u2", requestID.String(), start, start, nil, nil, nil, nil, nil))

	_, err := dao.CreateTrainingSession(context.Background(), "u1", req)

	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Update(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reps := int16(15)
	req := &models.TrainingSessionRequest{Start: start, End: start.Add(time.Hour), Repetitions: &reps}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT owner_id FROM "mateo".training_session WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("u1"))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "mateo".training_session`)).
		WithArgs(start, start.Add(time.Hour), nil, nil, int64(15), nil, nil, int64(5)).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).
			AddRow(int64(5), "u1", uuid.NewString(), start, start.Add(time.Hour), nil, nil, int64(15), nil, nil))
	mock.ExpectCommit()

	updated, err := dao.UpdateTrainingSession(context.Background(), 5, "u1", req)

	require.NoError(t, err)
	require.NotNil(t, updated.Repetitions)
	assert.Equal(t, int16(15), *updated.Repetitions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Update_NotFound(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)
	req := &models.TrainingSessionRequest{Start: time.Now(), End: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}))
	mock.ExpectRollback()

	_, err := dao.UpdateTrainingSession(context.Background(), 5, "u1", req)

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Update_OtherOwner(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)
	req := &models.TrainingSessionRequest{Start: time.Now(), End: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("u2"))
	mock.ExpectRollback()

	_, err := dao.UpdateTrainingSession(context.Background(), 5, "u1", req)

	// No UPDATE statement may reach the database
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Delete(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("u1"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "mateo".training_session WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := dao.DeleteTrainingSession(context.Background(), 5, "u1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Delete_Missing(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}))
	mock.ExpectRollback()

	err := dao.DeleteTrainingSession(context.Background(), 404, "u1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_Delete_OtherOwner(t *testing.T) {
	dao, mock := newTrainingSessionDao(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("u2"))
	mock.ExpectRollback()

	err := dao.DeleteTrainingSession(context.Background(), 5, "u1")

	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionDao_TableWithoutSchema(t *testing.T) {
	dao := &TrainingSessionDao{}
	assert.Equal(t, "training_session", dao.table())
}
