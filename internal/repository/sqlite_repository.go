package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"schedpoll/internal/domain"
	"schedpoll/pkg/database"
)

type sqlitePollRepository struct {
	db *database.SQLiteDB
}

// NewSQLitePollRepository creates the embedded poll store and applies its schema
func NewSQLitePollRepository(ctx context.Context, db *database.SQLiteDB) (PollRepository, error) {
	for _, stmt := range SQLiteSchema {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
		}
	}
	return &sqlitePollRepository{db: db}, nil
}

// CreatePoll inserts poll, host and fields in one transaction
func (r *sqlitePollRepository) CreatePoll(ctx context.Context, poll *domain.Poll, host *domain.Member, fields []domain.AuxInfoField) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO polls (token, title, description, date_start, date_end, timezone, is_open, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, poll.Token, poll.Title, poll.Description, poll.DateStart, poll.DateEnd, poll.Timezone, poll.Open, poll.TimeCreated.Unix())
		if err != nil {
			return fmt.Errorf("failed to create poll: %w", err)
		}
		if poll.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read poll id: %w", err)
		}

		host.PollID = poll.ID
		host.Host = true
		if err := sqliteInsertMember(ctx, tx, host); err != nil {
			return err
		}

		for i := range fields {
			fields[i].PollID = poll.ID
			res, err := tx.ExecContext(ctx, `
				INSERT INTO aux_info (poll_id, code, type, title, description)
				VALUES (?, ?, ?, ?, ?)
			`, poll.ID, fields[i].Code, string(fields[i].Type), fields[i].Title, fields[i].Description)
			if err != nil {
				return fmt.Errorf("failed to create aux info field %s: %w", fields[i].Code, err)
			}
			if fields[i].ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to read aux info field id: %w", err)
			}
		}

		return nil
	})
}

// GetPollByToken retrieves a poll by its public token
func (r *sqlitePollRepository) GetPollByToken(ctx context.Context, token string) (*domain.Poll, error) {
	var poll domain.Poll
	var created int64
	err := r.db.DB.QueryRowContext(ctx, `
		SELECT id, token, title, description, date_start, date_end, timezone, is_open, created_at
		FROM polls
		WHERE token = ?
	`, token).Scan(
		&poll.ID,
		&poll.Token,
		&poll.Title,
		&poll.Description,
		&poll.DateStart,
		&poll.DateEnd,
		&poll.Timezone,
		&poll.Open,
		&created,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	poll.TimeCreated = time.Unix(created, 0).UTC()
	return &poll, nil
}

// SetPollOpen updates the open flag
func (r *sqlitePollRepository) SetPollOpen(ctx context.Context, pollID int64, open bool) error {
	if _, err := r.db.DB.ExecContext(ctx, `UPDATE polls SET is_open = ? WHERE id = ?`, open, pollID); err != nil {
		return fmt.Errorf("failed to update poll: %w", err)
	}
	return nil
}

// DeletePoll removes a poll; owned rows cascade
func (r *sqlitePollRepository) DeletePoll(ctx context.Context, pollID int64) error {
	if _, err := r.db.DB.ExecContext(ctx, `DELETE FROM polls WHERE id = ?`, pollID); err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	return nil
}

// DeletePollsCreatedBefore removes expired polls
func (r *sqlitePollRepository) DeletePollsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM polls WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired polls: %w", err)
	}
	return res.RowsAffected()
}

// CreateMember inserts a member with its answers
func (r *sqlitePollRepository) CreateMember(ctx context.Context, member *domain.Member, values []domain.AuxInfoValue) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := sqliteInsertMember(ctx, tx, member); err != nil {
			return err
		}
		for i := range values {
			values[i].UserID = member.ID
		}
		return sqliteInsertAuxValues(ctx, tx, values)
	})
}

// GetMember retrieves a member scoped to its poll
func (r *sqlitePollRepository) GetMember(ctx context.Context, pollID, memberID int64) (*domain.Member, error) {
	var m domain.Member
	err := r.db.DB.QueryRowContext(ctx, `
		SELECT id, poll_id, name, pass, host
		FROM poll_users
		WHERE id = ? AND poll_id = ?
	`, memberID, pollID).Scan(&m.ID, &m.PollID, &m.Name, &m.PasswordDigest, &m.Host)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &m, nil
}

// ListMembers retrieves every member of a poll
func (r *sqlitePollRepository) ListMembers(ctx context.Context, pollID int64) ([]domain.Member, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT id, poll_id, name, pass, host
		FROM poll_users
		WHERE poll_id = ?
		ORDER BY id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.PollID, &m.Name, &m.PasswordDigest, &m.Host); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// DeleteMember removes a member; attendance and answers cascade
func (r *sqlitePollRepository) DeleteMember(ctx context.Context, pollID, memberID int64) error {
	if _, err := r.db.DB.ExecContext(ctx, `DELETE FROM poll_users WHERE id = ? AND poll_id = ?`, memberID, pollID); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

// ListFields retrieves the poll's fields
func (r *sqlitePollRepository) ListFields(ctx context.Context, pollID int64) ([]domain.AuxInfoField, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT id, poll_id, code, type, title, description
		FROM aux_info
		WHERE poll_id = ?
		ORDER BY id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list aux info fields: %w", err)
	}
	defer rows.Close()

	var fields []domain.AuxInfoField
	for rows.Next() {
		var f domain.AuxInfoField
		var typ string
		if err := rows.Scan(&f.ID, &f.PollID, &f.Code, &typ, &f.Title, &f.Description); err != nil {
			return nil, fmt.Errorf("failed to scan aux info field: %w", err)
		}
		f.Type = domain.FieldType(typ)
		fields = append(fields, f)
	}

	return fields, rows.Err()
}

// ListAttendance retrieves attendance of every member of the poll
func (r *sqlitePollRepository) ListAttendance(ctx context.Context, pollID int64) ([]domain.AttendanceEntry, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT a.user_id, a.date, a.time_slot, a.val
		FROM attendance a
		JOIN poll_users u ON u.id = a.user_id
		WHERE u.poll_id = ?
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var entries []domain.AttendanceEntry
	for rows.Next() {
		var e domain.AttendanceEntry
		if err := rows.Scan(&e.UserID, &e.Date, &e.Timeslot, &e.Val); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ReplaceAttendance deletes and re-inserts a member's attendance in one transaction
func (r *sqlitePollRepository) ReplaceAttendance(ctx context.Context, memberID int64, entries []domain.AttendanceEntry) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE user_id = ?`, memberID); err != nil {
			return fmt.Errorf("failed to clear attendance: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO attendance (user_id, date, time_slot, val) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare attendance insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, memberID, e.Date, e.Timeslot, e.Val); err != nil {
				return fmt.Errorf("failed to insert attendance: %w", err)
			}
		}
		return nil
	})
}

// ListAuxInfoValues retrieves answers restricted to the poll's own fields
func (r *sqlitePollRepository) ListAuxInfoValues(ctx context.Context, pollID int64) ([]domain.AuxInfoValue, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT ui.user_id, ui.info_id, ui.val
		FROM user_info ui
		JOIN poll_users u ON u.id = ui.user_id
		JOIN aux_info f ON f.id = ui.info_id
		WHERE u.poll_id = ? AND f.poll_id = ?
	`, pollID, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list aux info values: %w", err)
	}
	defer rows.Close()

	var values []domain.AuxInfoValue
	for rows.Next() {
		var v domain.AuxInfoValue
		if err := rows.Scan(&v.UserID, &v.InfoID, &v.Val); err != nil {
			return nil, fmt.Errorf("failed to scan aux info value: %w", err)
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

// ReplaceAuxInfoValues deletes and re-inserts a member's answers in one transaction
func (r *sqlitePollRepository) ReplaceAuxInfoValues(ctx context.Context, memberID int64, values []domain.AuxInfoValue) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_info WHERE user_id = ?`, memberID); err != nil {
			return fmt.Errorf("failed to clear aux info values: %w", err)
		}
		for i := range values {
			values[i].UserID = memberID
		}
		return sqliteInsertAuxValues(ctx, tx, values)
	})
}

// Health checks the database
func (r *sqlitePollRepository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

func sqliteInsertMember(ctx context.Context, tx *sql.Tx, m *domain.Member) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO poll_users (poll_id, name, pass, host)
		VALUES (?, ?, ?, ?)
	`, m.PollID, m.Name, m.PasswordDigest, m.Host)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read member id: %w", err)
	}
	return nil
}

func sqliteInsertAuxValues(ctx context.Context, tx *sql.Tx, values []domain.AuxInfoValue) error {
	for _, v := range values {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_info (user_id, info_id, val) VALUES (?, ?, ?)`, v.UserID, v.InfoID, v.Val); err != nil {
			return fmt.Errorf("failed to insert aux info value: %w", err)
		}
	}
	return nil
}
