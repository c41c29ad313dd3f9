package store

import (
	"context"
	"fmt"
	"time"
)

const (
	TranscriptionStatusStarted = "started"
	TranscriptionStatusDone    = "done"
	TranscriptionStatusFailed  = "failed"
)

type Transcription struct {
	ID             int64
	InputFile      string
	Status         string
	ModelName      string
	AudioDuration  float64
	ChunkCount     int32
	RuleCount      int32
	ProcessingTime float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *Store) CreateTranscription(ctx context.Context, inputFile string) (int64, error) {
	const query = `
		INSERT INTO transcriptions (input_file, status)
		VALUES ($1, $2)
		RETURNING id`

	var id int64
	err := s.db.QueryRow(ctx, query, inputFile, TranscriptionStatusStarted).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating transcription: %w", err)
	}

	return id, nil
}

type FinishTranscriptionParams struct {
	ID             int64
	ModelName      string
	AudioDuration  float64
	ChunkCount     int32
	RuleCount      int32
	ProcessingTime float64
}

func (s *Store) FinishTranscription(ctx context.Context, params FinishTranscriptionParams) error {
	const query = `
		UPDATE transcriptions SET
			status = $2, model_name = $3, audio_duration = $4,
			chunk_count = $5, rule_count = $6, processing_time = $7,
			updated_at = now()
		WHERE id = $1`

	_, err := s.db.Exec(ctx, query,
		params.ID, TranscriptionStatusDone, params.ModelName,
		params.AudioDuration, params.ChunkCount, params.RuleCount, params.ProcessingTime,
	)
	if err != nil {
		return fmt.Errorf("finishing transcription: %w", err)
	}

	return nil
}

func (s *Store) FailTranscription(ctx context.Context, id int64) error {
	const query = `
		UPDATE transcriptions SET status = $2, updated_at = now()
		WHERE id = $1`

	_, err := s.db.Exec(ctx, query, id, TranscriptionStatusFailed)
	if err != nil {
		return fmt.Errorf("failing transcription: %w", err)
	}

	return nil
}

func (s *Store) GetTranscription(ctx context.Context, id int64) (Transcription, error) {
	const query = `
		SELECT id, input_file, status, model_name, audio_duration,
		       chunk_count, rule_count, processing_time, created_at, updated_at
		FROM transcriptions
		WHERE id = $1`

	var t Transcription
	err := s.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.InputFile, &t.Status, &t.ModelName, &t.AudioDuration,
		&t.ChunkCount, &t.RuleCount, &t.ProcessingTime, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Transcription{}, fmt.Errorf("getting transcription: %w", err)
	}

	return t, nil
}
