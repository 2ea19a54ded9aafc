package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ambutrack/internal/domain"
	"ambutrack/internal/events"
	"ambutrack/internal/service"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) BeginTx(ctx context.Context) (service.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	row := s.pool.QueryRow(ctx, incidentSelectByIDSQL, id)
	return scanIncident(row)
}

func (s *Store) ListIncidents(ctx context.Context, filter service.IncidentFilter) ([]*domain.Incident, error) {
	status := sql.NullString{}
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, incidentListSQL, status, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []*domain.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return incidents, nil
}

type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *Tx) GetIncidentForUpdate(ctx context.Context, id string) (*domain.Incident, error) {
	row := t.tx.QueryRow(ctx, incidentSelectByIDForUpdateSQL, id)
	return scanIncident(row)
}

func (t *Tx) CreateIncident(ctx context.Context, incident *domain.Incident) error {
	_, err := t.tx.Exec(ctx, incidentInsertSQL,
		incident.ID,
		incident.PatientID,
		incident.PatientPosition.Lat,
		incident.PatientPosition.Lng,
		incident.Status,
		nullString(incident.ResponderID),
		nullCoordinateLat(incident.ResponderPosition),
		nullCoordinateLng(incident.ResponderPosition),
		nullTime(incident.ResponderUpdatedAt),
		incident.CreatedAt,
		incident.UpdatedAt,
		nullTime(incident.RespondedAt),
		nullTime(incident.ResolvedAt),
	)
	return err
}

func (t *Tx) UpdateIncident(ctx context.Context, incident *domain.Incident) error {
	_, err := t.tx.Exec(ctx, incidentUpdateSQL,
		incident.PatientID,
		incident.PatientPosition.Lat,
		incident.PatientPosition.Lng,
		incident.Status,
		nullString(incident.ResponderID),
		nullCoordinateLat(incident.ResponderPosition),
		nullCoordinateLng(incident.ResponderPosition),
		nullTime(incident.ResponderUpdatedAt),
		incident.UpdatedAt,
		nullTime(incident.RespondedAt),
		nullTime(incident.ResolvedAt),
		incident.ID,
	)
	return err
}

func (t *Tx) EnqueueEvent(ctx context.Context, event events.Event) error {
	_, err := t.tx.Exec(ctx, outboxInsertSQL,
		event.ID,
		event.Type,
		event.AggregateType,
		event.AggregateID,
		event.Payload,
		event.OccurredAt,
	)
	return err
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var (
		responderID        sql.NullString
		responderLat       sql.NullFloat64
		responderLng       sql.NullFloat64
		responderUpdatedAt sql.NullTime
		respondedAt        sql.NullTime
		resolvedAt         sql.NullTime
	)
	incident := &domain.Incident{}
	err := row.Scan(
		&incident.ID,
		&incident.PatientID,
		&incident.PatientPosition.Lat,
		&incident.PatientPosition.Lng,
		&incident.Status,
		&responderID,
		&responderLat,
		&responderLng,
		&responderUpdatedAt,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&respondedAt,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if responderID.Valid {
		incident.ResponderID = &responderID.String
	}
	if responderLat.Valid && responderLng.Valid {
		incident.ResponderPosition = &domain.Coordinate{Lat: responderLat.Float64, Lng: responderLng.Float64}
	}
	if responderUpdatedAt.Valid {
		incident.ResponderUpdatedAt = &responderUpdatedAt.Time
	}
	if respondedAt.Valid {
		incident.RespondedAt = &respondedAt.Time
	}
	if resolvedAt.Valid {
		incident.ResolvedAt = &resolvedAt.Time
	}
	return incident, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullCoordinateLat(pos *domain.Coordinate) sql.NullFloat64 {
	if pos == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: pos.Lat, Valid: true}
}

func nullCoordinateLng(pos *domain.Coordinate) sql.NullFloat64 {
	if pos == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: pos.Lng, Valid: true}
}
