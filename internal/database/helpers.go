// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pathwise/pathwise/internal/logging"
	"github.com/pathwise/pathwise/internal/metrics"
)

// execer is the shared surface of *sql.Tx and *sql.DB used by write
// helpers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rollbackQuietly rolls back a transaction, ignoring the error after a
// successful commit.
func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		metrics.DBQueryErrors.WithLabelValues("rollback", "").Inc()
		logging.Warn().Err(err).Msg("Transaction rollback failed")
	}
}

// closeRows closes a result set, logging on failure.
func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close result rows")
	}
}
