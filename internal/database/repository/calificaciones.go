package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brokernuam/calificaciones/internal/calificacion"
)

// CalificacionRepo is the development backend store. The full record travels in the
// payload column; filter and key columns are kept alongside it for lookups.
type CalificacionRepo struct {
	db DBTX
}

func NewCalificacionRepo(db DBTX) *CalificacionRepo { return &CalificacionRepo{db: db} }

// List returns records matching every non-empty filter field, oldest first.
func (r *CalificacionRepo) List(ctx context.Context, f calificacion.Filter) ([]calificacion.Record, error) {
	var where []string
	var args []interface{}

	if v := strings.TrimSpace(f.Mercado); v != "" {
		where = append(where, "mercado = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.Origen); v != "" {
		where = append(where, "origen = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.Periodo); v != "" {
		where = append(where, "periodo = ?")
		args = append(args, v)
	}

	query := "SELECT id, payload FROM calificaciones"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calificaciones: %w", err)
	}
	defer rows.Close()

	out := []calificacion.Record{}
	for rows.Next() {
		rec, err := scanCalificacion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list calificaciones: %w", err)
	}
	return out, nil
}

func (r *CalificacionRepo) Get(ctx context.Context, id int64) (calificacion.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, payload FROM calificaciones WHERE id = ?`, id)
	rec, err := scanCalificacion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return calificacion.Record{}, ErrNotFound
	}
	return rec, err
}

// Insert stores rec and returns it carrying its new id.
func (r *CalificacionRepo) Insert(ctx context.Context, rec calificacion.Record) (calificacion.Record, error) {
	payload, err := encodePayload(rec)
	if err != nil {
		return calificacion.Record{}, err
	}
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO calificaciones(broker, mercado, origen, periodo, instrumento, fecha_pago, payload, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`, rec.Broker, rec.Mercado, rec.Origen, rec.Periodo, rec.Instrumento, rec.FechaPago, payload)
	if err != nil {
		return calificacion.Record{}, fmt.Errorf("insert calificacion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return calificacion.Record{}, fmt.Errorf("insert calificacion: %w", err)
	}
	return rec.AssignID(id), nil
}

// Update replaces record id entirely with rec.
func (r *CalificacionRepo) Update(ctx context.Context, id int64, rec calificacion.Record) (calificacion.Record, error) {
	payload, err := encodePayload(rec)
	if err != nil {
		return calificacion.Record{}, err
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE calificaciones
	SET broker = ?, mercado = ?, origen = ?, periodo = ?, instrumento = ?, fecha_pago = ?, payload = ?,
	    updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`,
		rec.Broker, rec.Mercado, rec.Origen, rec.Periodo, rec.Instrumento, rec.FechaPago, payload, id)
	if err != nil {
		return calificacion.Record{}, fmt.Errorf("update calificacion %d: %w", id, err)
	}
	if err := requireAffected(res); err != nil {
		return calificacion.Record{}, err
	}
	return rec.AssignID(id), nil
}

func (r *CalificacionRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calificaciones WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete calificacion %d: %w", id, err)
	}
	return requireAffected(res)
}

// FindByKey returns the id of the record with the given natural key, if any.
func (r *CalificacionRepo) FindByKey(ctx context.Context, broker, instrumento, fechaPago string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
	SELECT id FROM calificaciones WHERE broker = ? AND instrumento = ? AND fecha_pago = ?
	ORDER BY id LIMIT 1`, broker, instrumento, fechaPago).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find calificacion: %w", err)
	}
	return id, true, nil
}

func (r *CalificacionRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calificaciones`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count calificaciones: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCalificacion(s scanner) (calificacion.Record, error) {
	var (
		id      int64
		payload string
	)
	if err := s.Scan(&id, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calificacion.Record{}, err
		}
		return calificacion.Record{}, fmt.Errorf("scan calificacion: %w", err)
	}
	var rec calificacion.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return calificacion.Record{}, fmt.Errorf("decode calificacion %d: %w", id, err)
	}
	return rec.AssignID(id), nil
}

func encodePayload(rec calificacion.Record) (string, error) {
	b, err := json.Marshal(rec.WithoutID())
	if err != nil {
		return "", fmt.Errorf("encode calificacion: %w", err)
	}
	return string(b), nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
