// Package repository holds the read side of the fleet: list and detail
// queries joining machines, venues, models, access points and the daily
// history.
package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/openawp/fleettrack/internal/fleet/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

type Params struct {
	fx.In

	DB *gorm.DB
}

func New(p Params) *Repository {
	return &Repository{db: p.DB}
}

// latestDailySubquery selects the id of a machine's most recent daily row.
const latestDailySubquery = `
	SELECT md2.id FROM machine_daily md2
	WHERE md2.machine_id = mach.id
	ORDER BY md2.reading_at DESC
	LIMIT 1`

// MachineFilter narrows the machine listing. Zero values mean no filter.
type MachineFilter struct {
	Q         string
	Modello   string
	Esercizio string
	Stato     string
	Limit     int
	Offset    int
}

// MachineRow is one machine listing entry with its venue, model and
// latest counters folded in.
type MachineRow struct {
	ID              snowflake.ID `json:"id"`
	Codeid          string       `json:"codeid"`
	CodeidProvv     *string      `json:"codeid_provv"`
	Stato           *string      `json:"stato"`
	DataAttivazione *time.Time   `json:"data_attivazione"`
	PercentOutEm    *float64     `json:"percent_out_em"`
	Esercizio       *string      `json:"esercizio"`
	Indirizzo       *string      `json:"indirizzo"`
	Comune          *string      `json:"comune"`
	Provincia       *string      `json:"provincia"`
	Modello         *string      `json:"modello"`
	LastReadingAt   *time.Time   `json:"last_reading_at"`
	LastCnttotin    *int64       `json:"last_cnttotin"`
	LastCnttotot    *int64       `json:"last_cnttotot"`
}

func (r *Repository) ListMachines(ctx context.Context, filter MachineFilter) ([]MachineRow, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}

	q := r.db.WithContext(ctx).
		Table("machines AS mach").
		Select(`mach.id, mach.codeid, mach.codeid_provv, mach.stato,
			mach.data_attivazione, mach.percent_out_em,
			v.nome AS esercizio, v.indirizzo, v.comune, v.provincia,
			m.nome AS modello,
			last.reading_at AS last_reading_at,
			last.cnttotin AS last_cnttotin,
			last.cnttotot AS last_cnttotot`).
		Joins("LEFT JOIN venues v ON v.id = mach.esercizio_id").
		Joins("LEFT JOIN models m ON m.id = mach.modello_id").
		Joins("LEFT JOIN machine_daily last ON last.id = (" + latestDailySubquery + ")")

	if filter.Q != "" {
		q = q.Where("mach.codeid LIKE ?", "%"+filter.Q+"%")
	}
	if filter.Modello != "" {
		q = q.Where("m.nome = ?", filter.Modello)
	}
	if filter.Esercizio != "" {
		q = q.Where("v.nome = ?", filter.Esercizio)
	}
	if filter.Stato != "" {
		q = q.Where("mach.stato = ?", filter.Stato)
	}

	var rows []MachineRow
	err := q.Order("v.nome, mach.codeid").
		Limit(limit).Offset(filter.Offset).
		Scan(&rows).Error
	return rows, err
}

// MachineDetail bundles a machine with its joined names, the recent daily
// history and the optional cycle override.
type MachineDetail struct {
	Machine MachineRecord         `json:"machine"`
	Daily   []domain.MachineDaily `json:"daily"`
	Cycle   *domain.CycleConfig   `json:"cycle"`
}

// MachineRecord is the machine row plus display names from its joins.
type MachineRecord struct {
	domain.Machine
	Esercizio       *string `json:"esercizio"`
	Indirizzo       *string `json:"indirizzo"`
	Comune          *string `json:"comune"`
	Provincia       *string `json:"provincia"`
	Modello         *string `json:"modello"`
	ModelloOfficial *string `json:"modello_official"`
}

func (r *Repository) GetMachineDetail(ctx context.Context, codeid string) (MachineDetail, error) {
	var machine MachineRecord
	err := r.db.WithContext(ctx).
		Table("machines AS mach").
		Select(`mach.*,
			v.nome AS esercizio, v.indirizzo, v.comune, v.provincia,
			m.nome AS modello, m.official_name AS modello_official`).
		Joins("LEFT JOIN venues v ON v.id = mach.esercizio_id").
		Joins("LEFT JOIN models m ON m.id = mach.modello_id").
		Where("mach.codeid = ?", codeid).
		First(&machine).Error
	if err != nil {
		return MachineDetail{}, err
	}

	var daily []domain.MachineDaily
	if err := r.db.WithContext(ctx).
		Where("machine_id = ?", machine.ID).
		Order("reading_at DESC").
		Limit(200).
		Find(&daily).Error; err != nil {
		return MachineDetail{}, err
	}

	detail := MachineDetail{Machine: machine, Daily: daily}

	var cycle domain.CycleConfig
	err = r.db.WithContext(ctx).First(&cycle, "machine_id = ?", machine.ID).Error
	switch {
	case err == nil:
		detail.Cycle = &cycle
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return MachineDetail{}, err
	}
	return detail, nil
}

// MachineIDByCodeid resolves the external code to the internal id.
func (r *Repository) MachineIDByCodeid(ctx context.Context, codeid string) (snowflake.ID, error) {
	var machine domain.Machine
	if err := r.db.WithContext(ctx).
		Select("id").
		First(&machine, "codeid = ?", codeid).Error; err != nil {
		return 0, err
	}
	return machine.ID, nil
}

// ModelSummary counts machines per model display name.
type ModelSummary struct {
	Modello     *string `json:"modello"`
	NumMachines int64   `json:"num_machines"`
}

func (r *Repository) ModelsSummary(ctx context.Context) ([]ModelSummary, error) {
	var rows []ModelSummary
	err := r.db.WithContext(ctx).
		Table("machines AS mach").
		Select("m.nome AS modello, COUNT(*) AS num_machines").
		Joins("LEFT JOIN models m ON m.id = mach.modello_id").
		Group("m.nome").
		Order("num_machines DESC, modello ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) ListModels(ctx context.Context) ([]domain.Model, error) {
	var models []domain.Model
	err := r.db.WithContext(ctx).
		Order("codice_modello").
		Find(&models).Error
	return models, err
}

// ListModelsADM orders the models for the settings sheet: named
// commercial entries first.
func (r *Repository) ListModelsADM(ctx context.Context) ([]domain.Model, error) {
	var models []domain.Model
	err := r.db.WithContext(ctx).
		Order("(commercial_name IS NULL), commercial_name, codice_modello").
		Find(&models).Error
	return models, err
}

// UpdateModelDefaults fills the cycle defaults of one model; nil inputs
// leave the stored value alone.
func (r *Repository) UpdateModelDefaults(ctx context.Context, id snowflake.ID, payout *float64, cycleLen *int64) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE models SET
			default_payout_percent  = COALESCE(?, default_payout_percent),
			default_cycle_length_in = COALESCE(?, default_cycle_length_in)
		WHERE id = ?`, payout, cycleLen, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// VenueRow is one venue listing entry with its machine count.
type VenueRow struct {
	ID          snowflake.ID `json:"id"`
	Nome        string       `json:"nome"`
	Indirizzo   *string      `json:"indirizzo"`
	Comune      *string      `json:"comune"`
	Provincia   *string      `json:"provincia"`
	NumMachines int64        `json:"num_machines"`
}

func (r *Repository) ListVenues(ctx context.Context) ([]VenueRow, error) {
	var rows []VenueRow
	err := r.db.WithContext(ctx).
		Table("venues AS v").
		Select("v.id, v.nome, v.indirizzo, v.comune, v.provincia, COUNT(mach.id) AS num_machines").
		Joins("LEFT JOIN machines mach ON mach.esercizio_id = v.id").
		Group("v.id, v.nome, v.indirizzo, v.comune, v.provincia").
		Order("v.nome").
		Scan(&rows).Error
	return rows, err
}

// VenueMachine is one machine at a venue with its latest counters.
type VenueMachine struct {
	Codeid     string     `json:"codeid"`
	Modello    *string    `json:"modello"`
	Cnttotin   *int64     `json:"cnttotin"`
	Cnttotot   *int64     `json:"cnttotot"`
	ReadingAt  *time.Time `json:"reading_at"`
	MacAddress *string    `json:"mac_address"`
}

// VenueDetail bundles a venue with its machines and access points.
type VenueDetail struct {
	Venue    domain.Venue         `json:"venue"`
	Machines []VenueMachine       `json:"machines"`
	Pdas     []domain.AccessPoint `json:"pdas"`
}

func (r *Repository) GetVenueDetail(ctx context.Context, id snowflake.ID) (VenueDetail, error) {
	var venue domain.Venue
	if err := r.db.WithContext(ctx).First(&venue, "id = ?", id).Error; err != nil {
		return VenueDetail{}, err
	}

	var machines []VenueMachine
	if err := r.db.WithContext(ctx).
		Table("machines AS mach").
		Select(`mach.codeid, mdl.nome AS modello,
			md.cnttotin, md.cnttotot, md.reading_at, md.mac_address`).
		Joins("LEFT JOIN machine_daily md ON md.id = ("+latestDailySubquery+")").
		Joins("LEFT JOIN models mdl ON mdl.id = mach.modello_id").
		Where("mach.esercizio_id = ?", id).
		Order("mach.codeid").
		Scan(&machines).Error; err != nil {
		return VenueDetail{}, err
	}

	var pdas []domain.AccessPoint
	if err := r.db.WithContext(ctx).
		Where("venue_id = ?", id).
		Order("(last_seen_at IS NULL), last_seen_at DESC, mac ASC").
		Find(&pdas).Error; err != nil {
		return VenueDetail{}, err
	}

	return VenueDetail{Venue: venue, Machines: machines, Pdas: pdas}, nil
}

// AccessPointRow is one PDA listing entry with its venue folded in.
type AccessPointRow struct {
	Mac        string        `json:"mac"`
	LastSeenAt *time.Time    `json:"last_seen_at"`
	VenueID    *snowflake.ID `json:"venue_id,omitempty"`
	Venue      *string       `json:"venue"`
	Indirizzo  *string       `json:"indirizzo"`
	Comune     *string       `json:"comune"`
	Provincia  *string       `json:"provincia"`
}

func (r *Repository) ListAccessPoints(ctx context.Context) ([]AccessPointRow, error) {
	var rows []AccessPointRow
	err := r.db.WithContext(ctx).
		Table("pdas AS p").
		Select("p.mac, p.last_seen_at, v.nome AS venue, v.indirizzo, v.comune, v.provincia").
		Joins("LEFT JOIN venues v ON v.id = p.venue_id").
		Order("(p.last_seen_at IS NULL), p.last_seen_at DESC, p.mac ASC").
		Limit(500).
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) GetAccessPoint(ctx context.Context, mac string) (AccessPointRow, error) {
	var row AccessPointRow
	err := r.db.WithContext(ctx).
		Table("pdas AS p").
		Select("p.mac, p.last_seen_at, v.id AS venue_id, v.nome AS venue, v.indirizzo, v.comune, v.provincia").
		Joins("LEFT JOIN venues v ON v.id = p.venue_id").
		Where("p.mac = ?", strings.ToUpper(mac)).
		First(&row).Error
	return row, err
}

// AccessPointMachine is one machine whose latest reading reported
// through a given PDA.
type AccessPointMachine struct {
	Codeid    string     `json:"codeid"`
	Esercizio *string    `json:"esercizio"`
	Cnttotin  *int64     `json:"cnttotin"`
	Cnttotot  *int64     `json:"cnttotot"`
	ReadingAt *time.Time `json:"reading_at"`
}

// AccessPointDetail bundles a PDA with the machines last seen behind it.
type AccessPointDetail struct {
	Pda      AccessPointRow       `json:"pda"`
	Machines []AccessPointMachine `json:"machines"`
}

func (r *Repository) GetAccessPointDetail(ctx context.Context, mac string) (AccessPointDetail, error) {
	pda, err := r.GetAccessPoint(ctx, mac)
	if err != nil {
		return AccessPointDetail{}, err
	}

	var machines []AccessPointMachine
	err = r.db.WithContext(ctx).
		Table("machines AS mach").
		Select("mach.codeid, v.nome AS esercizio, md.cnttotin, md.cnttotot, md.reading_at").
		Joins("JOIN machine_daily md ON md.id = ("+latestDailySubquery+")").
		Joins("LEFT JOIN venues v ON v.id = mach.esercizio_id").
		Where("UPPER(md.mac_address) = ?", strings.ToUpper(mac)).
		Order("md.reading_at DESC").
		Scan(&machines).Error
	if err != nil {
		return AccessPointDetail{}, err
	}

	return AccessPointDetail{Pda: pda, Machines: machines}, nil
}

// SearchResult is one cross-entity hit: a machine, a PDA or a venue.
type SearchResult struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Sub   string `json:"sub"`
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// Search matches machines by code, PDAs by MAC (with or without colons)
// and venues by any location field. At most 20 results, machines first.
func (r *Repository) Search(ctx context.Context, q string) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []SearchResult{}, nil
	}

	like := "%" + q + "%"
	normLike := "%" + nonAlnum.ReplaceAllString(q, "") + "%"

	var out []SearchResult

	var machines []struct {
		Codeid    string
		Esercizio *string
	}
	if err := r.db.WithContext(ctx).
		Table("machines AS m").
		Select("m.codeid, (SELECT nome FROM venues v WHERE v.id = m.esercizio_id) AS esercizio").
		Where("m.codeid LIKE ?", like).
		Order("m.codeid").Limit(10).
		Scan(&machines).Error; err != nil {
		return nil, err
	}
	for _, m := range machines {
		out = append(out, SearchResult{Kind: "MACCHINA", Label: m.Codeid, Sub: strOr(m.Esercizio)})
	}

	var pdas []struct {
		Mac   string
		Venue *string
	}
	if err := r.db.WithContext(ctx).
		Table("pdas AS p").
		Select("p.mac, (SELECT nome FROM venues v WHERE v.id = p.venue_id) AS venue").
		Where("p.mac LIKE ? OR REPLACE(p.mac, ':', '') LIKE ?", like, normLike).
		Order("p.mac").Limit(10).
		Scan(&pdas).Error; err != nil {
		return nil, err
	}
	for _, p := range pdas {
		out = append(out, SearchResult{Kind: "PDA", Label: p.Mac, Sub: strOr(p.Venue)})
	}

	var venues []domain.Venue
	if err := r.db.WithContext(ctx).
		Where("nome LIKE ? OR indirizzo LIKE ? OR comune LIKE ? OR provincia LIKE ?",
			like, like, like, like).
		Order("nome").Limit(10).
		Find(&venues).Error; err != nil {
		return nil, err
	}
	for _, v := range venues {
		var parts []string
		for _, p := range []*string{v.Indirizzo, v.Comune, v.Provincia} {
			if p != nil && *p != "" {
				parts = append(parts, *p)
			}
		}
		out = append(out, SearchResult{Kind: "LOCALE", Label: v.Nome, Sub: strings.Join(parts, " - ")})
	}

	if len(out) > 20 {
		out = out[:20]
	}
	return out, nil
}

func strOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
