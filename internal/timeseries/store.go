// Package timeseries persists the append-only daily reading history.
package timeseries

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/openawp/fleettrack/internal/fleet/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Row is one daily reading to record for a machine.
type Row struct {
	MachineID              snowflake.ID
	SnapshotID             snowflake.ID
	ReadingAt              *time.Time
	DataUltimoCollegamento *time.Time
	GgMancatoCollegamento  *float64
	GgDecadenza            *float64
	DataUltimaLetturaVal   *time.Time
	Cnttotin               *int64
	Cnttotot               *int64
	IncassoGiornaliero     *float64
	MediaIncassoGg         *float64
	Warning                *string
	Awp                    *string
	MacAddress             *string
}

type Store struct {
	db    *gorm.DB
	genID *snowflake.Node
}

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
}

func New(p Params) *Store {
	return &Store{db: p.DB, genID: p.GenID}
}

// UpsertDaily records one reading keyed by (machine_id, data_ultima_lettura_val).
// On a key collision connectivity fields mirror the new row unconditionally,
// while counters and money fields only replace the stored value when the new
// one is non-NULL. Re-importing a sparser export for the same date therefore
// never erases numeric history. Rows with a NULL reading date never collide.
func (s *Store) UpsertDaily(ctx context.Context, row Row) error {
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO machine_daily (
			id, machine_id, snapshot_id, reading_at,
			data_ultimo_collegamento, gg_mancato_collegamento, gg_decadenza,
			data_ultima_lettura_val, cnttotin, cnttotot,
			incasso_giornaliero, media_incasso_gg, warning, awp, mac_address
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (machine_id, data_ultima_lettura_val) DO UPDATE SET
			reading_at               = excluded.reading_at,
			data_ultimo_collegamento = excluded.data_ultimo_collegamento,
			gg_mancato_collegamento  = excluded.gg_mancato_collegamento,
			gg_decadenza             = excluded.gg_decadenza,
			cnttotin                 = COALESCE(excluded.cnttotin, cnttotin),
			cnttotot                 = COALESCE(excluded.cnttotot, cnttotot),
			incasso_giornaliero      = COALESCE(excluded.incasso_giornaliero, incasso_giornaliero),
			media_incasso_gg         = COALESCE(excluded.media_incasso_gg, media_incasso_gg),
			warning                  = COALESCE(excluded.warning, warning),
			awp                      = COALESCE(excluded.awp, awp),
			mac_address              = COALESCE(excluded.mac_address, mac_address)`,
		s.genID.Generate(), row.MachineID, row.SnapshotID, row.ReadingAt,
		row.DataUltimoCollegamento, row.GgMancatoCollegamento, row.GgDecadenza,
		row.DataUltimaLetturaVal, row.Cnttotin, row.Cnttotot,
		row.IncassoGiornaliero, row.MediaIncassoGg, row.Warning, row.Awp, row.MacAddress,
	).Error
}

// History returns the readings for one machine, newest reading date first.
func (s *Store) History(ctx context.Context, machineID snowflake.ID, limit int) ([]domain.MachineDaily, error) {
	var rows []domain.MachineDaily
	q := s.db.WithContext(ctx).
		Where("machine_id = ?", machineID).
		Order("data_ultima_lettura_val DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
