package sqlite

import (
	"context"
	"fmt"

	"mobiletables/pkg/domain"
)

var _ domain.AttendanceRepository = (*AttendanceDatabase)(nil)

// DefaultAttendancePath is the file name used by the attendance app.
const DefaultAttendancePath = "Usda.db3"

// start_time/end_time hold nanoseconds since midnight.
const attendanceDDL = `CREATE TABLE IF NOT EXISTS time_attendance (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL DEFAULT 0,
	date TEXT NOT NULL DEFAULT '',
	commodity TEXT NOT NULL DEFAULT '',
	exception TEXT NOT NULL DEFAULT '',
	request_type TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	start_time INTEGER NOT NULL DEFAULT 0,
	end_time INTEGER NOT NULL DEFAULT 0,
	activity TEXT NOT NULL DEFAULT '',
	total_hours REAL NOT NULL DEFAULT 0
)`

// AttendanceDatabase is the attendance app's local data-access object.
type AttendanceDatabase struct {
	*Store
}

// NewAttendanceDatabase opens the attendance file and creates its table on first run.
func NewAttendanceDatabase(ctx context.Context, path string) (*AttendanceDatabase, error) {
	store, err := Open(path, DefaultAttendancePath)
	if err != nil {
		return nil, err
	}
	if err := store.createTable(ctx, "time_attendance", attendanceDDL); err != nil {
		_ = store.Close()
		return nil, err
	}
	return &AttendanceDatabase{Store: store}, nil
}

// ListTimeAttendances returns every stored entry in insertion order.
func (d *AttendanceDatabase) ListTimeAttendances(ctx context.Context) ([]domain.TimeAttendance, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, user_id, date, commodity, exception, request_type, request_id,
		start_time, end_time, activity, total_hours FROM time_attendance ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select time attendances: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.TimeAttendance
	for rows.Next() {
		var (
			t          domain.TimeAttendance
			date       string
			start, end int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &date, &t.Commodity, &t.Exception, &t.RequestType, &t.RequestID,
			&start, &end, &t.Activity, &t.TotalHours); err != nil {
			return nil, fmt.Errorf("scan time attendance: %w", err)
		}
		if t.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		t.StartTime = domain.TimeOfDay(start)
		t.EndTime = domain.TimeOfDay(end)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time attendances: %w", err)
	}
	return out, nil
}

// SaveTimeAttendance updates an existing entry or inserts a new one.
func (d *AttendanceDatabase) SaveTimeAttendance(ctx context.Context, t *domain.TimeAttendance) (int, error) {
	if t.Persisted() {
		res, err := d.db.ExecContext(ctx, `UPDATE time_attendance SET user_id=?, date=?, commodity=?, exception=?, request_type=?,
			request_id=?, start_time=?, end_time=?, activity=?, total_hours=? WHERE id=?`,
			t.UserID, formatTime(t.Date), t.Commodity, t.Exception, t.RequestType, t.RequestID,
			int64(t.StartTime), int64(t.EndTime), t.Activity, t.TotalHours, t.ID)
		if err != nil {
			return 0, fmt.Errorf("update time attendance %d: %w", t.ID, err)
		}
		return rowsAffected(res)
	}
	res, err := d.db.ExecContext(ctx, `INSERT INTO time_attendance(user_id, date, commodity, exception, request_type,
		request_id, start_time, end_time, activity, total_hours) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		t.UserID, formatTime(t.Date), t.Commodity, t.Exception, t.RequestType, t.RequestID,
		int64(t.StartTime), int64(t.EndTime), t.Activity, t.TotalHours)
	if err != nil {
		return 0, fmt.Errorf("insert time attendance: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id
	return rowsAffected(res)
}

// DeleteTimeAttendance removes the entry with t's identifier.
func (d *AttendanceDatabase) DeleteTimeAttendance(ctx context.Context, t domain.TimeAttendance) (int, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM time_attendance WHERE id=?`, t.ID)
	if err != nil {
		return 0, fmt.Errorf("delete time attendance %d: %w", t.ID, err)
	}
	return rowsAffected(res)
}
