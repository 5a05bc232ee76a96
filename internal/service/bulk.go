package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brokernuam/calificaciones/internal/calificacion"
	"github.com/brokernuam/calificaciones/internal/database"
	"github.com/brokernuam/calificaciones/internal/database/repository"
)

// Origen labels for records written by a bulk load.
const (
	OrigenManual         = "Manual"
	OrigenBulkMontos     = "Carga Masiva - Montos"
	OrigenBulkFactores   = "Carga Masiva - Factores"
	bulkStatusCompleted  = "Carga completada"
	bulkStatusWithErrors = "Carga completada con errores"
)

// ErrMissingKey is returned when an upload lacks the columns that identify a record.
var ErrMissingKey = errors.New("el archivo debe incluir las columnas instrumento y fecha_pago")

// BulkService previews and applies CSV uploads against the development store.
type BulkService struct {
	DB     *sql.DB
	Broker string
	Log    logrus.FieldLogger
}

// Preview returns the header row and the first rows of the upload as they were read.
func (s *BulkService) Preview(content []byte) (calificacion.Preview, error) {
	t, err := ParseCSV(bytes.NewReader(content))
	if err != nil {
		return calificacion.Preview{}, err
	}
	header := make([]calificacion.Cell, len(t.Header))
	for i, h := range t.Header {
		header[i] = calificacion.TextCell(h)
	}
	out := calificacion.Preview{Rows: [][]calificacion.Cell{header}}
	for i, row := range t.Rows {
		if i == calificacion.PreviewRows {
			break
		}
		cells := make([]calificacion.Cell, len(t.Header))
		for j := range cells {
			v := ""
			if j < len(row) {
				v = row[j]
			}
			cells[j] = calificacion.ValueCell(v)
		}
		out.Rows = append(out.Rows, cells)
	}
	return out, nil
}

// Load upserts every row keyed by (broker, instrumento, fecha_pago). Rows that fail to
// parse or validate are reported in Errores and skipped; the rest are written in one
// transaction.
func (s *BulkService) Load(ctx context.Context, content []byte) (calificacion.BulkResult, error) {
	t, err := ParseCSV(bytes.NewReader(content))
	if err != nil {
		return calificacion.BulkResult{}, err
	}
	if !t.Has(calificacion.FieldInstrumento) || !t.Has(calificacion.FieldFechaPago) {
		return calificacion.BulkResult{}, ErrMissingKey
	}
	fromMontos := t.Has(MontoColumn(1))

	log := s.logger().WithFields(logrus.Fields{"rows": len(t.Rows), "montos": fromMontos})
	var res calificacion.BulkResult
	err = database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		repo := repository.NewCalificacionRepo(tx)
		for i, row := range t.Rows {
			line := t.Lines[i]
			rec, err := s.rowRecord(t, row, fromMontos)
			if err != nil {
				res.Errores = append(res.Errores, fmt.Sprintf("fila %d: %v", line, err))
				continue
			}
			created, err := upsert(ctx, repo, t, row, rec)
			if err != nil {
				return fmt.Errorf("fila %d: %w", line, err)
			}
			if created {
				res.Creados++
			} else {
				res.Actualizados++
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("bulk load failed")
		return calificacion.BulkResult{}, err
	}
	res.Status = bulkStatusCompleted
	if len(res.Errores) > 0 {
		res.Status = bulkStatusWithErrors
	}
	log.WithFields(logrus.Fields{
		"creados":      res.Creados,
		"actualizados": res.Actualizados,
		"errores":      len(res.Errores),
	}).Info("bulk load done")
	return res, nil
}

// rowRecord builds the record a row describes.
func (s *BulkService) rowRecord(t Table, row []string, fromMontos bool) (calificacion.Record, error) {
	rec := calificacion.Blank()
	rec.Broker = s.Broker
	rec.Origen = OrigenBulkFactores
	if fromMontos {
		rec.Origen = OrigenBulkMontos
	}
	if err := applyRow(&rec, t, row); err != nil {
		return calificacion.Record{}, err
	}
	if fromMontos {
		factors, err := rowFactors(t, row)
		if err != nil {
			return calificacion.Record{}, err
		}
		rec.Factores = factors
	}
	if fe := calificacion.Validate(rec); fe != nil {
		return calificacion.Record{}, fe
	}
	return rec, nil
}

// applyRow sets every recognised non-monto column present in the upload.
func applyRow(rec *calificacion.Record, t Table, row []string) error {
	for i, col := range t.Columns {
		if col == "" || strings.HasPrefix(col, "monto_") || i >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[i])
		if col == calificacion.FieldFechaPago {
			v = NormalizeDate(v)
		}
		if v == "" && col == calificacion.FieldOrigen {
			continue
		}
		if err := rec.Set(col, v); err != nil {
			return err
		}
	}
	return nil
}

func rowFactors(t Table, row []string) ([calificacion.FactorCount]calificacion.Factor, error) {
	var m Montos
	for n := 1; n <= calificacion.FactorCount; n++ {
		d, err := ParseMonto(t.Value(row, MontoColumn(n)))
		if err != nil {
			return [calificacion.FactorCount]calificacion.Factor{}, err
		}
		m[n-1] = d
	}
	return CalculateFactors(m)
}

// upsert writes rec, updating the record with the same key when there is one. Columns
// the upload does not carry keep their stored values.
func upsert(ctx context.Context, repo *repository.CalificacionRepo, t Table, row []string, rec calificacion.Record) (bool, error) {
	id, found, err := repo.FindByKey(ctx, rec.Broker, rec.Instrumento, rec.FechaPago)
	if err != nil {
		return false, err
	}
	if !found {
		_, err := repo.Insert(ctx, rec)
		return err == nil, err
	}
	existing, err := repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if err := applyRow(&existing, t, row); err != nil {
		return false, err
	}
	existing.Origen = rec.Origen
	if t.Has(MontoColumn(1)) {
		existing.Factores = rec.Factores
	}
	_, err = repo.Update(ctx, id, existing)
	return false, err
}

func (s *BulkService) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "2006/01/02"}

// NormalizeDate rewrites common day-first and slash layouts as YYYY-MM-DD. Text that
// matches no layout is returned unchanged so validation can report it.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		// spreadsheet exports sometimes append a midnight time
		if d, _, ok := strings.Cut(s, " "); ok {
			s = d
		}
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(time.DateOnly)
		}
	}
	return s
}
