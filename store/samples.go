package store

import (
	"context"
	"fmt"
	"time"

	"steptracker/motion"
)

func (db *DB) InsertStepSample(s motion.Sample) (int64, error) {
	return db.insertID(`INSERT INTO step_samples (recorded_at_ms, steps) VALUES (?, ?)`,
		s.RecordedAt.UnixMilli(), s.Steps)
}

// AppendSamples inserts a batch of samples in one transaction.
func (db *DB) AppendSamples(ctx context.Context, samples []motion.Sample) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, db.Q(`INSERT INTO step_samples (recorded_at_ms, steps) VALUES (?, ?)`))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, s := range samples {
		if s.Steps < 0 {
			tx.Rollback()
			return fmt.Errorf("negative step count %d at %s", s.Steps, s.RecordedAt.Format(time.RFC3339))
		}
		if _, err := stmt.ExecContext(ctx, s.RecordedAt.UnixMilli(), s.Steps); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SumSteps returns the total of samples recorded in [from, to).
func (db *DB) SumSteps(ctx context.Context, from, to time.Time) (int, error) {
	var total int64
	err := db.QueryRowContext(ctx, db.Q(`SELECT COALESCE(SUM(steps), 0) FROM step_samples WHERE recorded_at_ms >= ? AND recorded_at_ms < ?`),
		from.UnixMilli(), to.UnixMilli()).Scan(&total)
	return int(total), err
}

// DeleteStepSamples removes all samples and returns how many were removed.
func (db *DB) DeleteStepSamples(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM step_samples`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
