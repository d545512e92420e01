package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"traininglog/lib/constants"
	"traininglog/lib/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const sessionColumns = `id, owner_id, request_id, start_time, end_time, exercise_type_id,
	set_count, repetitions, work_seconds, rest_seconds`

// TrainingSessionRepository defines the data operations on training sessions.
// Every operation is scoped to the owner passed in; sessions of other owners are never returned or changed.
type TrainingSessionRepository interface {
	// ListTrainingSessions returns one page of the owner's sessions starting within [from, to], oldest first
	ListTrainingSessions(ctx context.Context, ownerID string, from, to time.Time, page models.PageRequest) (*models.TrainingSessionPage, error)

	// GetTrainingSession returns a single session of the owner
	GetTrainingSession(ctx context.Context, id int64, ownerID string) (*models.TrainingSession, error)

	// CreateTrainingSession stores a new session. Retrying with the same request id returns the stored session.
	CreateTrainingSession(ctx context.Context, ownerID string, req *models.TrainingSessionRequest) (*models.TrainingSession, error)

	// UpdateTrainingSession replaces every mutable field of the session
	UpdateTrainingSession(ctx context.Context, id int64, ownerID string, req *models.TrainingSessionRequest) (*models.TrainingSession, error)

	// DeleteTrainingSession removes the session; deleting a missing session succeeds
	DeleteTrainingSession(ctx context.Context, id int64, ownerID string) error
}

// TrainingSessionDao implements TrainingSessionRepository using PostgreSQL
type TrainingSessionDao struct {
	DB     *sqlx.DB
	Schema string
	Logger *logrus.Logger
}

func (dao *TrainingSessionDao) table() string {
	if dao.Schema == "" {
		return constants.SESSIONS_TABLE
	}
	return pq.QuoteIdentifier(dao.Schema) + "." + constants.SESSIONS_TABLE
}

// ListTrainingSessions returns the requested page together with the total count of matching sessions
func (dao *TrainingSessionDao) ListTrainingSessions(ctx context.Context, ownerID string, from, to time.Time, page models.PageRequest) (*models.TrainingSessionPage, error) {
	var totalCount int64
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE owner_id = $1 AND start_time >= $2 AND start_time <= $3
	`, dao.table())

	if err := dao.DB.GetContext(ctx, &totalCount, countQuery, ownerID, from, to); err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "ListTrainingSessions",
			"owner_id":  ownerID,
			"error":     err.Error(),
		}).Error("Failed to count training sessions")
		return nil, models.Upstream("failed to count training sessions", err)
	}

	sessions := []models.TrainingSession{}
	listQuery := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND start_time >= $2 AND start_time <= $3
		ORDER BY start_time ASC, id ASC
		LIMIT $4 OFFSET $5
	`, sessionColumns, dao.table())

	if err := dao.DB.SelectContext(ctx, &sessions, listQuery, ownerID, from, to, page.PageSize, page.Offset()); err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "ListTrainingSessions",
			"owner_id":  ownerID,
			"error":     err.Error(),
		}).Error("Failed to query training sessions")
		return nil, models.Upstream("failed to query training sessions", err)
	}

	dao.Logger.WithFields(logrus.Fields{
		"operation":   "ListTrainingSessions",
		"owner_id":    ownerID,
		"count":       len(sessions),
		"total_count": totalCount,
	}).Debug("Successfully retrieved training sessions")

	return &models.TrainingSessionPage{
		Sessions:   sessions,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: totalCount,
		TotalPages: models.TotalPages(totalCount, page.PageSize),
	}, nil
}

// GetTrainingSession retrieves a session by ID; sessions of other owners are reported as not found
func (dao *TrainingSessionDao) GetTrainingSession(ctx context.Context, id int64, ownerID string) (*models.TrainingSession, error) {
	var session models.TrainingSession
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND owner_id = $2`, sessionColumns, dao.table())

	err := dao.DB.GetContext(ctx, &session, query, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation":  "GetTrainingSession",
			"session_id": id,
			"error":      err.Error(),
		}).Error("Failed to get training session")
		return nil, models.Upstream("failed to get training session", err)
	}

	return &session, nil
}

// CreateTrainingSession inserts the session. A conflicting request id resolves to the stored row,
// which is only handed back to its own owner.
func (dao *TrainingSessionDao) CreateTrainingSession(ctx context.Context, ownerID string, req *models.TrainingSessionRequest) (*models.TrainingSession, error) {
	session := req.ToSession(ownerID)

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (
			owner_id, request_id, start_time, end_time, exercise_type_id,
			set_count, repetitions, work_seconds, rest_seconds
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING %s
	`, dao.table(), sessionColumns)

	var created models.TrainingSession
	err := dao.DB.GetContext(ctx, &created, insertQuery,
		session.OwnerID, session.RequestID, session.Start, session.End, session.ExerciseTypeID,
		session.SetCount, session.Repetitions, session.WorkSeconds, session.RestSeconds)

	if errors.Is(err, sql.ErrNoRows) {
		return dao.existingByRequestID(ctx, session)
	}
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation":  "CreateTrainingSession",
			"owner_id":   ownerID,
			"request_id": session.RequestID,
			"error":      err.Error(),
		}).Error("Failed to create training session")
		return nil, models.Upstream("failed to create training session", err)
	}

	dao.Logger.WithFields(logrus.Fields{
		"operation":  "CreateTrainingSession",
		"session_id": created.ID,
		"owner_id":   ownerID,
	}).Debug("Successfully created training session")

	return &created, nil
}

func (dao *TrainingSessionDao) existingByRequestID(ctx context.Context, session *models.TrainingSession) (*models.TrainingSession, error) {
	var existing models.TrainingSession
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE request_id = $1`, sessionColumns, dao.table())

	if err := dao.DB.GetContext(ctx, &existing, query, session.RequestID); err != nil {
		return nil, models.Upstream("failed to get training session by request id", err)
	}

	if existing.OwnerID != session.OwnerID {
		dao.Logger.WithFields(logrus.Fields{
			"operation":  "CreateTrainingSession",
			"request_id": session.RequestID,
			"owner_id":   session.OwnerID,
		}).Warn("Request id already used by another owner")
		return nil, models.ErrForbidden
	}

	dao.Logger.WithFields(logrus.Fields{
		"operation":  "CreateTrainingSession",
		"session_id": existing.ID,
		"request_id": session.RequestID,
	}).Info("Duplicate create request, returning stored training session")

	return &existing, nil
}

// UpdateTrainingSession locks the row, checks ownership and overwrites the mutable fields
func (dao *TrainingSessionDao) UpdateTrainingSession(ctx context.Context, id int64, ownerID string, req *models.TrainingSessionRequest) (*models.TrainingSession, error) {
	tx, err := dao.DB.BeginTxx(ctx, nil)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to start transaction for training session update")
		return nil, models.Upstream("failed to start transaction", err)
	}
	defer tx.Rollback()

	if err := dao.checkOwner(ctx, tx, id, ownerID, "UpdateTrainingSession"); err != nil {
		return nil, err
	}

	updateQuery := fmt.Sprintf(`
		UPDATE %s
		SET start_time = $1, end_time = $2, exercise_type_id = $3, set_count = $4,
		    repetitions = $5, work_seconds = $6, rest_seconds = $7
		WHERE id = $8
		RETURNING %s
	`, dao.table(), sessionColumns)

	var updated models.TrainingSession
	err = tx.GetContext(ctx, &updated, updateQuery,
		req.Start, req.End, req.ExerciseTypeID, req.SetCount,
		req.Repetitions, req.WorkSeconds, req.RestSeconds, id)
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation":  "UpdateTrainingSession",
			"session_id": id,
			"error":      err.Error(),
		}).Error("Failed to update training session")
		return nil, models.Upstream("failed to update training session", err)
	}

	if err = tx.Commit(); err != nil {
		dao.Logger.WithError(err).Error("Failed to commit training session update")
		return nil, models.Upstream("failed to commit transaction", err)
	}

	dao.Logger.WithFields(logrus.Fields{
		"operation":  "UpdateTrainingSession",
		"session_id": id,
		"owner_id":   ownerID,
	}).Debug("Successfully updated training session")

	return &updated, nil
}

// DeleteTrainingSession removes the session if it exists and belongs to the owner
func (dao *TrainingSessionDao) DeleteTrainingSession(ctx context.Context, id int64, ownerID string) error {
	tx, err := dao.DB.BeginTxx(ctx, nil)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to start transaction for training session deletion")
		return models.Upstream("failed to start transaction", err)
	}
	defer tx.Rollback()

	err = dao.checkOwner(ctx, tx, id, ownerID, "DeleteTrainingSession")
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, dao.table()), id); err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation":  "DeleteTrainingSession",
			"session_id": id,
			"error":      err.Error(),
		}).Error("Failed to delete training session")
		return models.Upstream("failed to delete training session", err)
	}

	if err = tx.Commit(); err != nil {
		dao.Logger.WithError(err).Error("Failed to commit training session deletion")
		return models.Upstream("failed to commit transaction", err)
	}

	dao.Logger.WithFields(logrus.Fields{
		"operation":  "DeleteTrainingSession",
		"session_id": id,
		"owner_id":   ownerID,
	}).Debug("Successfully deleted training session")

	return nil
}

// checkOwner locks the session row for the rest of the transaction
func (dao *TrainingSessionDao) checkOwner(ctx context.Context, tx *sqlx.Tx, id int64, ownerID, operation string) error {
	var currentOwner string
	query := fmt.Sprintf(`SELECT owner_id FROM %s WHERE id = $1 FOR UPDATE`, dao.table())

	err := tx.GetContext(ctx, &currentOwner, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		dao.Logger.WithFields(logrus.Fields{
			"operation":  operation,
			"session_id": id,
		}).Warn("Training session not found")
		return models.ErrNotFound
	}
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation":  operation,
			"session_id": id,
			"error":      err.Error(),
		}).Error("Failed to lock training session")
		return models.Upstream("failed to lock training session", err)
	}

	if currentOwner != ownerID {
		dao.Logger.WithFields(logrus.Fields{
			"operation":  operation,
			"session_id": id,
			"owner_id":   ownerID,
		}).Warn("Training session belongs to another user")
		return models.ErrForbidden
	}

	return nil
}
