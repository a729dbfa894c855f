package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edgefleet/armada/internal/domain"
)

const deviceColumns = `
	device_id, name, device_type, status, serial_number, mac_address, hardware_id,
	manufacturer, model, latitude, longitude, altitude, address, building, floor, room,
	capabilities, configuration, configuration_version, last_seen, created_at, updated_at, version`

// DeviceRepo maps aggregates to snapshot rows in the devices table and
// drives event appends through the event store on the same transaction.
type DeviceRepo struct {
	q      querier
	events *EventStore
}

func NewDeviceRepo(q querier) *DeviceRepo {
	return &DeviceRepo{q: q, events: NewEventStore(q)}
}

func (r *DeviceRepo) Save(ctx context.Context, agg *domain.DeviceAggregate) error {
	d := agg.Entity()

	var capsJSON []byte
	if d.Capabilities != nil {
		var err error
		capsJSON, err = json.Marshal(d.Capabilities)
		if err != nil {
			return fmt.Errorf("marshal capabilities: %w", err)
		}
	}
	configJSON, err := json.Marshal(d.Configuration.Settings)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	var lat, lon, alt *float64
	var address, building, floor, room *string
	if d.Location != nil {
		lat, lon, alt = d.Location.Latitude, d.Location.Longitude, d.Location.Altitude
		address = optionalString(d.Location.Address)
		building = optionalString(d.Location.Building)
		floor = optionalString(d.Location.Floor)
		room = optionalString(d.Location.Room)
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (device_id) DO UPDATE SET
			name = EXCLUDED.name,
			device_type = EXCLUDED.device_type,
			status = EXCLUDED.status,
			serial_number = EXCLUDED.serial_number,
			mac_address = EXCLUDED.mac_address,
			hardware_id = EXCLUDED.hardware_id,
			manufacturer = EXCLUDED.manufacturer,
			model = EXCLUDED.model,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			altitude = EXCLUDED.altitude,
			address = EXCLUDED.address,
			building = EXCLUDED.building,
			floor = EXCLUDED.floor,
			room = EXCLUDED.room,
			capabilities = EXCLUDED.capabilities,
			configuration = EXCLUDED.configuration,
			configuration_version = EXCLUDED.configuration_version,
			last_seen = EXCLUDED.last_seen,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
	`, d.ID, d.Name, d.Type, d.Status, d.Identifier.SerialNumber,
		optionalString(d.Identifier.MACAddress), optionalString(d.Identifier.HardwareID),
		d.Manufacturer, d.Model, lat, lon, alt, address, building, floor, room,
		capsJSON, configJSON, d.Configuration.Version, d.LastSeen, d.CreatedAt, d.UpdatedAt, d.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.RepositoryError{Op: "save device", Err: domain.ErrConflict}
		}
		return fmt.Errorf("upsert device: %w", err)
	}

	return r.events.SaveEvents(ctx, d.ID, agg.UncommittedEvents(), agg.ExpectedVersion())
}

func (r *DeviceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeviceAggregate, error) {
	row := r.q.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE device_id = $1`, id)
	entity, err := scanDevice(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &domain.RepositoryError{Op: "get device", Err: domain.ErrNotFound}
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return domain.LoadDevice(entity), nil
}

func (r *DeviceRepo) GetBySerialNumber(ctx context.Context, serialNumber string) (*domain.DeviceAggregate, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+deviceColumns+` FROM devices WHERE LOWER(serial_number) = LOWER($1)
	`, serialNumber)
	entity, err := scanDevice(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &domain.RepositoryError{Op: "get device by serial", Err: domain.ErrNotFound}
		}
		return nil, fmt.Errorf("get device by serial: %w", err)
	}
	return domain.LoadDevice(entity), nil
}

func (r *DeviceRepo) GetAll(ctx context.Context) ([]*domain.DeviceEntity, error) {
	rows, err := r.q.Query(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()
	return scanDevices(rows)
}

func (r *DeviceRepo) FindByCriteria(ctx context.Context, f domain.DeviceFilter, sortBy *domain.DeviceSort, limit, offset int) ([]*domain.DeviceEntity, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		where += fmt.Sprintf(" AND device_type = ANY($%d)", argIdx)
		args = append(args, types)
		argIdx++
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where += fmt.Sprintf(" AND status = ANY($%d)", argIdx)
		args = append(args, statuses)
		argIdx++
	}
	if f.Manufacturer != nil {
		where += fmt.Sprintf(" AND LOWER(manufacturer) = LOWER($%d)", argIdx)
		args = append(args, *f.Manufacturer)
		argIdx++
	}
	if f.Model != nil {
		where += fmt.Sprintf(" AND LOWER(model) = LOWER($%d)", argIdx)
		args = append(args, *f.Model)
		argIdx++
	}
	if f.HasLocation != nil {
		if *f.HasLocation {
			where += " AND (latitude IS NOT NULL OR address IS NOT NULL)"
		} else {
			where += " AND latitude IS NULL AND address IS NULL"
		}
	}
	if f.SearchTerm != nil {
		where += fmt.Sprintf(
			" AND (name ILIKE $%d OR manufacturer ILIKE $%d OR model ILIKE $%d OR serial_number ILIKE $%d)",
			argIdx, argIdx, argIdx, argIdx)
		args = append(args, "%"+*f.SearchTerm+"%")
		argIdx++
	}
	for _, capability := range f.Capabilities {
		where += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(
				COALESCE(capabilities->'supported_protocols', '[]'::jsonb) ||
				COALESCE(capabilities->'sensors', '[]'::jsonb) ||
				COALESCE(capabilities->'actuators', '[]'::jsonb)
			) AS declared(value) WHERE LOWER(declared.value) = LOWER($%d)
		)`, argIdx)
		args = append(args, capability)
		argIdx++
	}

	var total int
	if err := r.q.QueryRow(ctx, "SELECT COUNT(*) FROM devices "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count devices: %w", err)
	}

	orderCol := "created_at"
	if sortBy != nil {
		switch sortBy.Field {
		case "name", "device_type", "status", "serial_number", "manufacturer",
			"model", "created_at", "updated_at", "last_seen", "version":
			orderCol = sortBy.Field
		}
	}
	orderDir := "ASC"
	if sortBy != nil && sortBy.Descending {
		orderDir = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM devices %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		deviceColumns, where, orderCol, orderDir, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("find devices: %w", err)
	}
	defer rows.Close()

	devices, err := scanDevices(rows)
	if err != nil {
		return nil, 0, err
	}
	return devices, total, nil
}

// Delete removes the snapshot row only. The event log keeps the device's
// full history.
func (r *DeviceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM devices WHERE device_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.RepositoryError{Op: "delete device", Err: domain.ErrNotFound}
	}
	return nil
}

func scanDevices(rows pgx.Rows) ([]*domain.DeviceEntity, error) {
	devices := []*domain.DeviceEntity{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func scanDevice(row pgx.Row) (*domain.DeviceEntity, error) {
	d := &domain.DeviceEntity{}
	var macAddress, hardwareID *string
	var lat, lon, alt *float64
	var address, building, floor, room *string
	var capsJSON, configJSON []byte
	var configVersion int
	var updatedAt time.Time

	err := row.Scan(
		&d.ID, &d.Name, &d.Type, &d.Status, &d.Identifier.SerialNumber, &macAddress, &hardwareID,
		&d.Manufacturer, &d.Model, &lat, &lon, &alt, &address, &building, &floor, &room,
		&capsJSON, &configJSON, &configVersion, &d.LastSeen, &d.CreatedAt, &updatedAt, &d.Version,
	)
	if err != nil {
		return nil, err
	}
	d.UpdatedAt = updatedAt

	if macAddress != nil {
		d.Identifier.MACAddress = *macAddress
	}
	if hardwareID != nil {
		d.Identifier.HardwareID = *hardwareID
	}
	if lat != nil || lon != nil || alt != nil || address != nil || building != nil || floor != nil || room != nil {
		d.Location = &domain.DeviceLocation{
			Latitude:  lat,
			Longitude: lon,
			Altitude:  alt,
			Address:   stringOrEmpty(address),
			Building:  stringOrEmpty(building),
			Floor:     stringOrEmpty(floor),
			Room:      stringOrEmpty(room),
		}
	}
	if len(capsJSON) > 0 {
		caps := &domain.DeviceCapabilities{}
		if err := json.Unmarshal(capsJSON, caps); err != nil {
			return nil, fmt.Errorf("unmarshal capabilities: %w", err)
		}
		d.Capabilities = caps
	}
	settings := map[string]interface{}{}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &settings); err != nil {
			return nil, fmt.Errorf("unmarshal configuration: %w", err)
		}
	}
	d.Configuration = &domain.DeviceConfiguration{
		Settings:  settings,
		Version:   configVersion,
		UpdatedAt: d.UpdatedAt,
	}
	return d, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
