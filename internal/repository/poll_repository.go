package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schedpoll/internal/domain"
	"schedpoll/pkg/database"

	"github.com/jackc/pgx/v5"
)

type pollRepository struct {
	db *database.PostgresDB
}

// NewPollRepository creates the Postgres-backed poll store
func NewPollRepository(db *database.PostgresDB) PollRepository {
	return &pollRepository{db: db}
}

// CreatePoll inserts poll, host and fields in one transaction
func (r *pollRepository) CreatePoll(ctx context.Context, poll *domain.Poll, host *domain.Member, fields []domain.AuxInfoField) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO polls (token, title, description, date_start, date_end, timezone, is_open, created_at)
			VALUES ($1, $2, $3, CAST($4::text AS date), CAST($5::text AS date), $6, $7, $8)
			RETURNING id
		`,
			poll.Token,
			poll.Title,
			poll.Description,
			poll.DateStart,
			poll.DateEnd,
			poll.Timezone,
			poll.Open,
			poll.TimeCreated,
		).Scan(&poll.ID)
		if err != nil {
			return fmt.Errorf("failed to create poll: %w", err)
		}

		host.PollID = poll.ID
		host.Host = true
		if err := insertMember(ctx, tx, host); err != nil {
			return err
		}

		for i := range fields {
			fields[i].PollID = poll.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO aux_info (poll_id, code, type, title, description)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, poll.ID, fields[i].Code, string(fields[i].Type), fields[i].Title, fields[i].Description).Scan(&fields[i].ID)
			if err != nil {
				return fmt.Errorf("failed to create aux info field %s: %w", fields[i].Code, err)
			}
		}

		return nil
	})
}

// GetPollByToken retrieves a poll by its public token
func (r *pollRepository) GetPollByToken(ctx context.Context, token string) (*domain.Poll, error) {
	var poll domain.Poll
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, token, title, description,
		       to_char(date_start, 'YYYY-MM-DD'), to_char(date_end, 'YYYY-MM-DD'),
		       timezone, is_open, created_at
		FROM polls
		WHERE token = $1
	`, token).Scan(
		&poll.ID,
		&poll.Token,
		&poll.Title,
		&poll.Description,
		&poll.DateStart,
		&poll.DateEnd,
		&poll.Timezone,
		&poll.Open,
		&poll.TimeCreated,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	return &poll, nil
}

// SetPollOpen updates the open flag
func (r *pollRepository) SetPollOpen(ctx context.Context, pollID int64, open bool) error {
	if _, err := r.db.Pool.Exec(ctx, `UPDATE polls SET is_open = $2 WHERE id = $1`, pollID, open); err != nil {
		return fmt.Errorf("failed to update poll: %w", err)
	}
	return nil
}

// DeletePoll removes a poll; members, fields, attendance and answers cascade
func (r *pollRepository) DeletePoll(ctx context.Context, pollID int64) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM polls WHERE id = $1`, pollID); err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	return nil
}

// DeletePollsCreatedBefore removes expired polls
func (r *pollRepository) DeletePollsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM polls WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired polls: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CreateMember inserts a member with its answers
func (r *pollRepository) CreateMember(ctx context.Context, member *domain.Member, values []domain.AuxInfoValue) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := insertMember(ctx, tx, member); err != nil {
			return err
		}
		for i := range values {
			values[i].UserID = member.ID
		}
		return insertAuxValues(ctx, tx, values)
	})
}

// GetMember retrieves a member scoped to its poll
func (r *pollRepository) GetMember(ctx context.Context, pollID, memberID int64) (*domain.Member, error) {
	var m domain.Member
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, poll_id, name, pass, host
		FROM poll_users
		WHERE id = $1 AND poll_id = $2
	`, memberID, pollID).Scan(&m.ID, &m.PollID, &m.Name, &m.PasswordDigest, &m.Host)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &m, nil
}

// ListMembers retrieves every member of a poll
func (r *pollRepository) ListMembers(ctx context.Context, pollID int64) ([]domain.Member, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, poll_id, name, pass, host
		FROM poll_users
		WHERE poll_id = $1
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
func (r *pollRepository) DeleteMember(ctx context.Context, pollID, memberID int64) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM poll_users WHERE id = $1 AND poll_id = $2`, memberID, pollID); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

// ListFields retrieves the poll's fields
func (r *pollRepository) ListFields(ctx context.Context, pollID int64) ([]domain.AuxInfoField, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, poll_id, code, type, title, description
		FROM aux_info
		WHERE poll_id = $1
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
func (r *pollRepository) ListAttendance(ctx context.Context, pollID int64) ([]domain.AttendanceEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT a.user_id, to_char(a.date, 'YYYY-MM-DD'), a.time_slot, a.val
		FROM attendance a
		JOIN poll_users u ON u.id = a.user_id
		WHERE u.poll_id = $1
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var entries []domain.AttendanceEntry
	for rows.Next() {
		var e domain.AttendanceEntry
		var slot int16
		if err := rows.Scan(&e.UserID, &e.Date, &slot, &e.Val); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		e.Timeslot = int(slot)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ReplaceAttendance deletes and re-inserts a member's attendance in one transaction
func (r *pollRepository) ReplaceAttendance(ctx context.Context, memberID int64, entries []domain.AttendanceEntry) error {
	rowsToCopy := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		day, err := time.Parse(domain.DateLayout, e.Date)
		if err != nil {
			return fmt.Errorf("invalid attendance date %q: %w", e.Date, err)
		}
		rowsToCopy = append(rowsToCopy, []interface{}{memberID, day, int16(e.Timeslot), e.Val})
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM attendance WHERE user_id = $1`, memberID); err != nil {
			return fmt.Errorf("failed to clear attendance: %w", err)
		}
		if len(rowsToCopy) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"attendance"},
			[]string{"user_id", "date", "time_slot", "val"},
			pgx.CopyFromRows(rowsToCopy),
		)
		if err != nil {
			return fmt.Errorf("failed to insert attendance: %w", err)
		}
		return nil
	})
}

// ListAuxInfoValues retrieves answers restricted to the poll's own fields
func (r *pollRepository) ListAuxInfoValues(ctx context.Context, pollID int64) ([]domain.AuxInfoValue, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT ui.user_id, ui.info_id, ui.val
		FROM user_info ui
		JOIN poll_users u ON u.id = ui.user_id
		JOIN aux_info f ON f.id = ui.info_id
		WHERE u.poll_id = $1 AND f.poll_id = $1
	`, pollID)
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
func (r *pollRepository) ReplaceAuxInfoValues(ctx context.Context, memberID int64, values []domain.AuxInfoValue) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_info WHERE user_id = $1`, memberID); err != nil {
			return fmt.Errorf("failed to clear aux info values: %w", err)
		}
		for i := range values {
			values[i].UserID = memberID
		}
		return insertAuxValues(ctx, tx, values)
	})
}

// Health checks the database connection
func (r *pollRepository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

func insertMember(ctx context.Context, tx pgx.Tx, m *domain.Member) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO poll_users (poll_id, name, pass, host)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.PollID, m.Name, m.PasswordDigest, m.Host).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func insertAuxValues(ctx context.Context, tx pgx.Tx, values []domain.AuxInfoValue) error {
	if len(values) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, v := range values {
		batch.Queue(`INSERT INTO user_info (user_id, info_id, val) VALUES ($1, $2, $3)`, v.UserID, v.InfoID, v.Val)
	}

	results := tx.SendBatch(ctx, batch)
	for range values {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert aux info value: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to insert aux info values: %w", err)
	}
	return nil
}
