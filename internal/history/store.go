package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cratedig/internal/progress"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ progress.Persister = (*Store)(nil)

// SaveEntry upserts the release's latest attempt and replaces its transitions.
func (s *Store) SaveEntry(ctx context.Context, entry progress.Entry) error {
	ctx = ensureContext(ctx)
	key := entry.Key()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO history_entries (
			release_key, artist_id, release_folder, artist_name, release_title, slot_id,
			started_at, finished, success, outcome, error_message, provider_used,
			total_duration_ms, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(release_key) DO UPDATE SET
			artist_id = excluded.artist_id,
			release_folder = excluded.release_folder,
			artist_name = excluded.artist_name,
			release_title = excluded.release_title,
			slot_id = excluded.slot_id,
			started_at = excluded.started_at,
			finished = excluded.finished,
			success = excluded.success,
			outcome = excluded.outcome,
			error_message = excluded.error_message,
			provider_used = excluded.provider_used,
			total_duration_ms = excluded.total_duration_ms,
			updated_at = excluded.updated_at`,
			key,
			entry.ArtistID,
			entry.ReleaseFolder,
			nullableString(entry.ArtistName),
			nullableString(entry.ReleaseTitle),
			entry.SlotID,
			entry.Timestamp.UTC().Format(timeLayout),
			boolToInt(entry.Finished),
			boolToInt(entry.Success),
			nullableString(entry.Outcome),
			nullableString(entry.ErrorMessage),
			nullableString(entry.ProviderUsed),
			entry.TotalDuration.Milliseconds(),
			time.Now().UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("upsert history entry: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM history_transitions WHERE release_key = ?", key); err != nil {
			return fmt.Errorf("clear transitions: %w", err)
		}
		for i, tr := range entry.Transitions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO history_transitions (release_key, seq, from_state, to_state, at, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?)`,
				key, i, string(tr.From), string(tr.To), tr.At.UTC().Format(timeLayout), tr.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("insert transition: %w", err)
			}
		}
		return nil
	})
}

// LoadAll returns every persisted entry, oldest first, with transitions attached.
func (s *Store) LoadAll(ctx context.Context) ([]progress.Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT
		release_key, artist_id, release_folder, artist_name, release_title, slot_id,
		started_at, finished, success, outcome, error_message, provider_used, total_duration_ms
		FROM history_entries ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query history entries: %w", err)
	}
	defer rows.Close()

	var (
		entries []progress.Entry
		index   = make(map[string]int)
	)
	for rows.Next() {
		var (
			key                           string
			entry                         progress.Entry
			artistName, releaseTitle      sql.NullString
			outcome, errorMsg, provider   sql.NullString
			startedAt                     string
			finished, success, durationMS int64
		)
		if err := rows.Scan(&key, &entry.ArtistID, &entry.ReleaseFolder, &artistName, &releaseTitle,
			&entry.SlotID, &startedAt, &finished, &success, &outcome, &errorMsg, &provider, &durationMS); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.ArtistName = artistName.String
		entry.ReleaseTitle = releaseTitle.String
		entry.Outcome = outcome.String
		entry.ErrorMessage = errorMsg.String
		entry.ProviderUsed = provider.String
		entry.Finished = finished != 0
		entry.Success = success != 0
		entry.TotalDuration = time.Duration(durationMS) * time.Millisecond
		entry.Timestamp = parseTime(startedAt)
		index[key] = len(entries)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	trRows, err := s.db.QueryContext(ctx,
		"SELECT release_key, from_state, to_state, at, duration_ms FROM history_transitions ORDER BY release_key, seq")
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer trRows.Close()
	for trRows.Next() {
		var (
			key, from, to, at string
			durationMS        int64
		)
		if err := trRows.Scan(&key, &from, &to, &at, &durationMS); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		i, ok := index[key]
		if !ok {
			continue
		}
		entries[i].Transitions = append(entries[i].Transitions, progress.Transition{
			From:     progress.SlotState(from),
			To:       progress.SlotState(to),
			At:       parseTime(at),
			Duration: time.Duration(durationMS) * time.Millisecond,
		})
	}
	if err := trRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return entries, nil
}

// PruneFinished deletes finished entries that started before cutoff.
func (s *Store) PruneFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stamp := cutoff.UTC().Format(timeLayout)
		if _, err := tx.ExecContext(ctx, `DELETE FROM history_transitions WHERE release_key IN (
			SELECT release_key FROM history_entries WHERE finished = 1 AND started_at < ?)`, stamp); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"DELETE FROM history_entries WHERE finished = 1 AND started_at < ?", stamp)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return removed, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
