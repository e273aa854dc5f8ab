// Package idempotency persists one HTTP response per (user, idempotency
// key) and decides whether an incoming request should replay that
// response or run its business logic inside a fresh transaction.
//
// The claim is a row inserted with null response fields before the
// wrapped handler runs. The primary key on (user_id, idempotency_key)
// is the only mutual exclusion: a concurrent retry that loses the
// insert either replays the finished response or is told to try again
// shortly. No in-process locks are involved.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abd0-omar/newzletter/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the persistence model for the idempotency table. The
// response columns stay null until the first attempt completes.
type Record struct {
	UserID             string `gorm:"column:user_id;type:varchar(255);primaryKey"`
	IdempotencyKey     string `gorm:"column:idempotency_key;type:varchar(255);primaryKey"`
	ResponseStatusCode *int   `gorm:"column:response_status_code;type:smallint"`
	ResponseHeaders    []byte `gorm:"column:response_headers;type:jsonb"`
	ResponseBody       []byte `gorm:"column:response_body;type:bytea"`
	CreatedAt          time.Time
}

func (Record) TableName() string {
	return "idempotency"
}

// NextAction is the outcome of TryProcessing. Exactly one field is set:
// SavedResponse when a prior attempt finished and must be replayed
// verbatim, or Tx when this attempt won the claim and owns the open
// transaction until SaveResponse or Abort.
type NextAction struct {
	SavedResponse *StoredResponse
	Tx            *gorm.DB
}

// Store coordinates idempotent request processing on top of Postgres.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db is required")
	}
	return &Store{db: db, now: time.Now}, nil
}

// TryProcessing claims the (user, key) pair inside a freshly begun
// transaction. Winning the claim returns the open transaction; the
// caller performs its writes on it and finishes with SaveResponse.
// Losing the claim rolls the transaction back and either replays the
// stored response or reports domain.ErrPendingRequest when the first
// attempt is still in flight.
func (s *Store) TryProcessing(ctx context.Context, userID, key string) (*NextAction, error) {
	if userID == "" || key == "" {
		return nil, fmt.Errorf("%w: user id and idempotency key are required", domain.ErrValidation)
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	claim := Record{
		UserID:         userID,
		IdempotencyKey: key,
		CreatedAt:      s.now().UTC(),
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&claim)
	if result.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to insert idempotency claim: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		return &NextAction{Tx: tx}, nil
	}

	// A prior attempt owns this key. The claim transaction is useless
	// now; read the existing row from the pool instead.
	tx.Rollback()

	saved, err := s.savedResponse(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, fmt.Errorf("%w: idempotency key %q", domain.ErrPendingRequest, key)
	}
	return &NextAction{SavedResponse: saved}, nil
}

// SaveResponse writes the final response into the claim row within tx,
// then commits. The response is durable, and therefore replayable, only
// after the commit returns.
func (s *Store) SaveResponse(ctx context.Context, tx *gorm.DB, userID, key string, resp *StoredResponse) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if resp == nil {
		tx.Rollback()
		return fmt.Errorf("stored response is required")
	}

	headers, err := encodeHeaders(resp.Headers)
	if err != nil {
		tx.Rollback()
		return err
	}

	body := resp.Body
	if body == nil {
		body = []byte{}
	}

	result := tx.WithContext(ctx).
		Model(&Record{}).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		Updates(map[string]any{
			"response_status_code": resp.StatusCode,
			"response_headers":     headers,
			"response_body":        body,
		})
	if result.Error != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save idempotent response: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return fmt.Errorf("idempotency claim row vanished for key %q", key)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit idempotent response: %w", err)
	}
	return nil
}

// Abort rolls back a transaction handed out by TryProcessing. The claim
// row disappears with the rollback, so a retry starts from scratch.
func (s *Store) Abort(tx *gorm.DB) {
	if tx != nil {
		tx.Rollback()
	}
}

// savedResponse returns the stored response for (user, key), nil when
// the row exists but its response fields are still null, and
// domain.ErrNotFound when no row exists at all.
func (s *Store) savedResponse(ctx context.Context, userID, key string) (*StoredResponse, error) {
	var record Record
	err := s.db.WithContext(ctx).
		First(&record, "user_id = ? AND idempotency_key = ?", userID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: idempotency record for key %q", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load idempotency record: %w", err)
	}

	return recordToResponse(&record)
}

func recordToResponse(record *Record) (*StoredResponse, error) {
	if record == nil || record.ResponseStatusCode == nil {
		return nil, nil
	}

	headers, err := decodeHeaders(record.ResponseHeaders)
	if err != nil {
		return nil, err
	}

	body := record.ResponseBody
	if body == nil {
		body = []byte{}
	}

	return &StoredResponse{
		StatusCode: *record.ResponseStatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}
