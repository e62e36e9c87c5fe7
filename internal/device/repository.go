package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*HardwareDevice, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]HardwareDevice, error)

	// ListByPond retrieves all devices belonging to a specific pond.
	ListByPond(ctx context.Context, pondID string) ([]HardwareDevice, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, d *HardwareDevice) error

	// Update modifies an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, d *HardwareDevice) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateState updates only the status, power level and last-trigger
	// timestamp. Optimised for the decision loop's frequent writes.
	UpdateState(ctx context.Context, id string, status DeviceStatus, power int, lastTrigger *time.Time) error

	// UpdateOverride flips the manual-override flag and pins the power level.
	UpdateOverride(ctx context.Context, id string, enabled bool, power int) error

	// UpdateConnection updates the connectivity flag and, when a device
	// drops off, its status.
	UpdateConnection(ctx context.Context, id string, connected bool, status DeviceStatus) error

	// GetPond retrieves a pond by ID.
	// Returns ErrPondNotFound if the pond does not exist.
	GetPond(ctx context.Context, id string) (*Pond, error)

	// ListPonds retrieves all ponds.
	ListPonds(ctx context.Context) ([]Pond, error)

	// CreatePond inserts a new pond.
	// Returns ErrPondExists if a pond with the same ID already exists.
	CreatePond(ctx context.Context, p *Pond) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, pond_id, capability, status, power_level,
		manual_override, last_trigger, is_connected, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*HardwareDevice, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]HardwareDevice, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name`
	return r.queryDevices(ctx, query)
}

// ListByPond retrieves all devices belonging to a specific pond.
func (r *SQLiteRepository) ListByPond(ctx context.Context, pondID string) ([]HardwareDevice, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE pond_id = ? ORDER BY name`
	return r.queryDevices(ctx, query, pondID)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *HardwareDevice) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, name, pond_id, capability, status, power_level,
			manual_override, last_trigger, is_connected, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.PondID,
		string(d.Capability),
		string(d.Status),
		d.PowerLevel,
		boolToInt(d.ManualOverride),
		nullableTime(d.LastTrigger),
		boolToInt(d.IsConnected),
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		if isForeignKeyError(err) {
			return ErrPondNotFound
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *HardwareDevice) error {
	d.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			name = ?, pond_id = ?, capability = ?, status = ?, power_level = ?,
			manual_override = ?, last_trigger = ?, is_connected = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		d.Name,
		d.PondID,
		string(d.Capability),
		string(d.Status),
		d.PowerLevel,
		boolToInt(d.ManualOverride),
		nullableTime(d.LastTrigger),
		boolToInt(d.IsConnected),
		d.UpdatedAt.Format(time.RFC3339),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	return checkAffected(result, ErrDeviceNotFound)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return checkAffected(result, ErrDeviceNotFound)
}

// UpdateState updates only the status, power level and last-trigger timestamp.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, status DeviceStatus, power int, lastTrigger *time.Time) error {
	now := time.Now().UTC()
	query := `
		UPDATE devices
		SET status = ?, power_level = ?, last_trigger = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(status),
		power,
		nullableTime(lastTrigger),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}
	return checkAffected(result, ErrDeviceNotFound)
}

// UpdateOverride flips the manual-override flag and pins the power level.
func (r *SQLiteRepository) UpdateOverride(ctx context.Context, id string, enabled bool, power int) error {
	now := time.Now().UTC()
	query := `
		UPDATE devices
		SET manual_override = ?, power_level = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		boolToInt(enabled),
		power,
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device override: %w", err)
	}
	return checkAffected(result, ErrDeviceNotFound)
}

// UpdateConnection updates the connectivity flag and status.
func (r *SQLiteRepository) UpdateConnection(ctx context.Context, id string, connected bool, status DeviceStatus) error {
	now := time.Now().UTC()
	query := `
		UPDATE devices
		SET is_connected = ?, status = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		boolToInt(connected),
		string(status),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device connection: %w", err)
	}
	return checkAffected(result, ErrDeviceNotFound)
}

// GetPond retrieves a pond by ID.
func (r *SQLiteRepository) GetPond(ctx context.Context, id string) (*Pond, error) {
	var p Pond
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM ponds WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPondNotFound
		}
		return nil, fmt.Errorf("querying pond by id: %w", err)
	}

	p.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing pond created_at: %w", err)
	}
	return &p, nil
}

// ListPonds retrieves all ponds.
func (r *SQLiteRepository) ListPonds(ctx context.Context) ([]Pond, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, created_at FROM ponds ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying ponds: %w", err)
	}
	defer rows.Close()

	var ponds []Pond
	for rows.Next() {
		var p Pond
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning pond: %w", err)
		}
		p.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing pond created_at: %w", err)
		}
		ponds = append(ponds, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ponds: %w", err)
	}

	return ponds, nil
}

// CreatePond inserts a new pond.
func (r *SQLiteRepository) CreatePond(ctx context.Context, p *Pond) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO ponds (id, name, created_at) VALUES (?, ?, ?)",
		p.ID, p.Name, p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrPondExists
		}
		return fmt.Errorf("inserting pond: %w", err)
	}

	return nil
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]HardwareDevice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []HardwareDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a HardwareDevice.
func scanDevice(scanner rowScanner) (*HardwareDevice, error) {
	var d HardwareDevice
	var capability, status string
	var manualOverride, isConnected int
	var lastTrigger sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.PondID,
		&capability,
		&status,
		&d.PowerLevel,
		&manualOverride,
		&lastTrigger,
		&isConnected,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Capability = Capability(capability)
	d.Status = DeviceStatus(status)
	d.ManualOverride = manualOverride != 0
	d.IsConnected = isConnected != 0

	if lastTrigger.Valid {
		t, err := time.Parse(time.RFC3339, lastTrigger.String)
		if err == nil {
			d.LastTrigger = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// checkAffected returns notFound when an UPDATE/DELETE touched no rows.
func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}

// isForeignKeyError checks if an error is a SQLite foreign key violation.
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
