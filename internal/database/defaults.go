package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brokernuam/calificaciones/internal/calificacion"
	"github.com/brokernuam/calificaciones/internal/database/repository"
)

type seedRow struct {
	mercado, origen, periodo, instrumento, fechaPago, calificacion string
	ejercicio                                                      int
	factors                                                        map[int]string
}

var seedRows = []seedRow{
	{"acciones", "Manual", "2024-01", "BONO-A", "2024-01-31", "AAA", 2024, map[int]string{8: "0.100000000", 9: "0.050000000"}},
	{"acciones", "Carga masiva", "2024-02", "BONO-B", "2024-02-29", "AA", 2024, map[int]string{8: "0.123456789"}},
	{"cfi", "Manual", "2024-01", "CFI-RENTA", "2024-01-15", "A", 2024, map[int]string{8: "0.250000000", 12: "0.010000000"}},
}

// SeedDefaults fills an empty development store with a few sample records. It is
// idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB, broker string) error {
	repo := repository.NewCalificacionRepo(db)
	n, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		txRepo := repository.NewCalificacionRepo(tx)
		for _, s := range seedRows {
			rec := calificacion.Blank()
			rec.Broker = broker
			rec.Mercado = s.mercado
			rec.Origen = s.origen
			rec.Periodo = s.periodo
			rec.Instrumento = s.instrumento
			rec.FechaPago = s.fechaPago
			rec.Ejercicio = s.ejercicio
			rec.Calificacion = s.calificacion
			for n, text := range s.factors {
				rec.SetFactor(n, calificacion.MustFactor(text))
			}
			if _, err := txRepo.Insert(ctx, rec); err != nil {
				return fmt.Errorf("seed %s: %w", s.instrumento, err)
			}
		}
		return nil
	})
}
