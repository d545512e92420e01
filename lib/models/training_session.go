// Package models defines the training log data structures and the error taxonomy shared by
// the store, the API handlers and the provisioning routine.
//
// Sessions carry JSON tags matching the mobile client's contract and db tags matching the
// training_session table.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrainingSession is one logged workout interval owned by a single user.
// JSON names follow the mobile client's contract.
type TrainingSession struct {
	ID             int64     `json:"id" db:"id"`
	OwnerID        string    `json:"idUsuario" db:"owner_id"`
	RequestID      uuid.UUID `json:"idRequest" db:"request_id"`
	Start          time.Time `json:"inicio" db:"start_time"`
	End            time.Time `json:"termino" db:"end_time"`
	ExerciseTypeID *int32    `json:"idTipoEjercicio" db:"exercise_type_id"`
	SetCount       *int16    `json:"serie" db:"set_count"`
	Repetitions    *int16    `json:"repeticiones" db:"repetitions"`
	WorkSeconds    *int16    `json:"segundosEntrenamiento" db:"work_seconds"`
	RestSeconds    *int16    `json:"segundosDescanso" db:"rest_seconds"`
}

// TrainingSessionRequest is the payload accepted by Crear and Actualizar
type TrainingSessionRequest struct {
	RequestID      *uuid.UUID `json:"idRequest,omitempty"`
	Start          time.Time  `json:"inicio"`
	End            time.Time  `json:"termino"`
	ExerciseTypeID *int32     `json:"idTipoEjercicio,omitempty"`
	SetCount       *int16     `json:"serie,omitempty"`
	Repetitions    *int16     `json:"repeticiones,omitempty"`
	WorkSeconds    *int16     `json:"segundosEntrenamiento,omitempty"`
	RestSeconds    *int16     `json:"segundosDescanso,omitempty"`
}

// Validate checks the fields every session must carry
func (r *TrainingSessionRequest) Validate() error {
	if r.Start.IsZero() {
		return &ValidationError{Field: "inicio", Message: "is required"}
	}
	if r.End.IsZero() {
		return &ValidationError{Field: "termino", Message: "is required"}
	}
	return nil
}

// ToSession builds the session owned by ownerID. A missing request id gets a fresh one.
func (r *TrainingSessionRequest) ToSession(ownerID string) *TrainingSession {
	requestID := uuid.New()
	if r.RequestID != nil && *r.RequestID != uuid.Nil {
		requestID = *r.RequestID
	}

	return &TrainingSession{
		OwnerID:        ownerID,
		RequestID:      requestID,
		Start:          r.Start,
		End:            r.End,
		ExerciseTypeID: r.ExerciseTypeID,
		SetCount:       r.SetCount,
		Repetitions:    r.Repetitions,
		WorkSeconds:    r.WorkSeconds,
		RestSeconds:    r.RestSeconds,
	}
}

// String renders the payload for log lines
func (r *TrainingSessionRequest) String() string {
	return fmt.Sprintf("inicio=%s termino=%s idTipoEjercicio=%s serie=%s repeticiones=%s segundosEntrenamiento=%s segundosDescanso=%s",
		r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339),
		optional(r.ExerciseTypeID), optional(r.SetCount), optional(r.Repetitions),
		optional(r.WorkSeconds), optional(r.RestSeconds))
}

func optional[T int16 | int32](v *T) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(*v)
}
