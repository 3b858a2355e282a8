package cycle

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/openawp/fleettrack/internal/fleet/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Alert is one ranked end-of-cycle entry. Percent fields are scaled to
// human form (65 means 65%).
type Alert struct {
	Codeid               string     `json:"codeid"`
	Esercizio            *string    `json:"esercizio"`
	Modello              *string    `json:"modello"`
	ReadingDate          *time.Time `json:"data_ultima_lettura_val"`
	Cnttotin             *int64     `json:"cnttotin"`
	Cnttotot             *int64     `json:"cnttotot"`
	CycleLengthIn        *int64     `json:"cycle_length_in"`
	TargetPayoutPercent  *float64   `json:"target_payout_percent"`
	CyclesDone           *int64     `json:"cicli_completati"`
	InCurrent            *int64     `json:"in_ciclo_corrente"`
	OutCurrent           *int64     `json:"out_ciclo_corrente"`
	CurrentPayoutPct     *float64   `json:"pct_ciclo_corrente"`
	PctThroughCycle      *float64   `json:"percentuale_ciclo"`
	RemainingIn          *int64     `json:"manca_incasso"`
	RemainingOutToTarget *int64     `json:"manca_pagare"`
	Healthy              bool       `json:"in_regola"`
}

// DecayAlert flags a machine approaching its license decay deadline.
type DecayAlert struct {
	Codeid                 string     `json:"codeid"`
	Esercizio              *string    `json:"esercizio"`
	Stato                  *string    `json:"stato"`
	GgDecadenza            *float64   `json:"gg_decadenza"`
	GgMancatoCollegamento  *float64   `json:"gg_mancato_collegamento"`
	DataUltimoCollegamento *time.Time `json:"data_ultimo_collegamento"`
	ReadingDate            *time.Time `json:"data_ultima_lettura_val"`
}

type Service struct {
	db *gorm.DB
}

type Params struct {
	fx.In

	DB *gorm.DB
}

func NewService(p Params) *Service {
	return &Service{db: p.DB}
}

type alertRow struct {
	Codeid              string
	Esercizio           *string
	Modello             *string
	ReadingDate         *time.Time
	Cnttotin            *int64
	Cnttotot            *int64
	CycleLengthIn       *int64
	TargetPayoutPercent *float64
}

// EndCycleAlerts computes cycle progress for every machine's latest reading
// and returns the ranking: healthy machines first, then by how far through
// the cycle the payout already is, then by the smallest amount left to pay.
func (s *Service) EndCycleAlerts(ctx context.Context, limit int) ([]Alert, error) {
	var rows []alertRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT m.codeid,
		       v.nome AS esercizio,
		       COALESCE(mo.nome, mo.codice_modello) AS modello,
		       d.data_ultima_lettura_val AS reading_date,
		       d.cnttotin,
		       d.cnttotot,
		       COALESCE(c.cycle_length_in, mo.default_cycle_length_in) AS cycle_length_in,
		       COALESCE(c.target_payout_percent, mo.default_payout_percent, ?) AS target_payout_percent
		FROM machines m
		LEFT JOIN models mo ON mo.id = m.modello_id
		LEFT JOIN venues v  ON v.id = m.esercizio_id
		LEFT JOIN cycles c  ON c.machine_id = m.id
		LEFT JOIN machine_daily d ON d.id = (
			SELECT d2.id FROM machine_daily d2
			WHERE d2.machine_id = m.id
			ORDER BY d2.data_ultima_lettura_val DESC
			LIMIT 1
		)`, DefaultPayoutPercent).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(rows))
	for _, r := range rows {
		stats := Compute(r.Cnttotin, r.Cnttotot, r.CycleLengthIn, r.TargetPayoutPercent)
		alerts = append(alerts, Alert{
			Codeid:               r.Codeid,
			Esercizio:            r.Esercizio,
			Modello:              r.Modello,
			ReadingDate:          r.ReadingDate,
			Cnttotin:             r.Cnttotin,
			Cnttotot:             r.Cnttotot,
			CycleLengthIn:        r.CycleLengthIn,
			TargetPayoutPercent:  scalePct(r.TargetPayoutPercent),
			CyclesDone:           stats.CyclesDone,
			InCurrent:            stats.InCurrent,
			OutCurrent:           stats.OutCurrent,
			CurrentPayoutPct:     scalePct(stats.CurrentPayoutPct),
			PctThroughCycle:      scalePct(pctThroughCycle(stats.InCurrent, r.CycleLengthIn)),
			RemainingIn:          stats.RemainingIn,
			RemainingOutToTarget: stats.RemainingOutToTarget,
			Healthy:              stats.Healthy(),
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Healthy != b.Healthy {
			return a.Healthy
		}
		if pa, pb := pctOr(a.PctThroughCycle, -1), pctOr(b.PctThroughCycle, -1); pa != pb {
			return pa > pb
		}
		return int64Or(a.RemainingOutToTarget, 0) < int64Or(b.RemainingOutToTarget, 0)
	})

	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

// DecayAlerts lists machines whose latest reading shows the license decay
// countdown at or below maxDays, most urgent first.
func (s *Service) DecayAlerts(ctx context.Context, maxDays float64, limit int) ([]DecayAlert, error) {
	var alerts []DecayAlert
	q := s.db.WithContext(ctx).Raw(`
		SELECT m.codeid,
		       v.nome AS esercizio,
		       m.stato,
		       d.gg_decadenza,
		       d.gg_mancato_collegamento,
		       d.data_ultimo_collegamento,
		       d.data_ultima_lettura_val AS reading_date
		FROM machines m
		LEFT JOIN venues v ON v.id = m.esercizio_id
		JOIN machine_daily d ON d.id = (
			SELECT d2.id FROM machine_daily d2
			WHERE d2.machine_id = m.id
			ORDER BY d2.data_ultima_lettura_val DESC
			LIMIT 1
		)
		WHERE d.gg_decadenza IS NOT NULL AND d.gg_decadenza <= ?
		ORDER BY d.gg_decadenza ASC
		LIMIT ?`, maxDays, limit)
	if err := q.Scan(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// ConfigInput carries the per-machine cycle override fields of a write.
type ConfigInput struct {
	CycleStartDate       *time.Time `json:"cycle_start_date"`
	CycleStartInCounter  *int64     `json:"cycle_start_in_counter"`
	CycleStartOutCounter *int64     `json:"cycle_start_out_counter"`
	CycleLengthIn        *int64     `json:"cycle_length_in"`
	TargetPayoutPercent  *float64   `json:"target_payout_percent"`
	Note                 *string    `json:"note"`
}

// SetConfig writes the cycle override for a machine, replacing any
// existing row wholesale.
func (s *Service) SetConfig(ctx context.Context, machineID snowflake.ID, in ConfigInput) (domain.CycleConfig, error) {
	cfg := domain.CycleConfig{
		MachineID:            machineID,
		CycleStartDate:       in.CycleStartDate,
		CycleStartInCounter:  in.CycleStartInCounter,
		CycleStartOutCounter: in.CycleStartOutCounter,
		CycleLengthIn:        in.CycleLengthIn,
		TargetPayoutPercent:  in.TargetPayoutPercent,
		Note:                 in.Note,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "machine_id"}},
			UpdateAll: true,
		}).
		Create(&cfg).Error
	return cfg, err
}

func pctThroughCycle(inCurrent *int64, cycleLen *int64) *float64 {
	if inCurrent == nil || cycleLen == nil || *cycleLen <= 0 {
		return nil
	}
	pct := float64(*inCurrent) / float64(*cycleLen)
	return &pct
}

func scalePct(v *float64) *float64 {
	if v == nil {
		return nil
	}
	scaled := *v * 100
	return &scaled
}

func pctOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func int64Or(v *int64, fallback int64) int64 {
	if v == nil {
		return fallback
	}
	return *v
}
