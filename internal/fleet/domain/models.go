// Package domain contains persistence models for the machine fleet.
// Column names follow the regulator's export vocabulary (codeid, esercizio,
// cnttotin, ...) because they are part of the schema contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Snapshot records one ingested export file. Rows are immutable once
// created; the file hash is the idempotence key.
type Snapshot struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	SourceFilename *string        `gorm:"type:text" json:"source_filename"`
	FileHash       string         `gorm:"type:text;not null;uniqueIndex" json:"file_hash"`
	RowsCount      int            `gorm:"not null" json:"rows_count"`
	Header         datatypes.JSON `json:"header,omitempty"`
	UploadedAt     time.Time      `gorm:"not null;autoCreateTime" json:"uploaded_at"`
}

func (Snapshot) TableName() string { return "snapshots" }

// Venue is a physical site hosting machines. Matching key is the
// (nome, indirizzo, comune, provincia) tuple with NULL equal to ''.
type Venue struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Nome        string       `gorm:"type:text;not null;index" json:"nome"`
	Indirizzo   *string      `gorm:"type:text" json:"indirizzo"`
	Comune      *string      `gorm:"type:text" json:"comune"`
	Provincia   *string      `gorm:"type:text" json:"provincia"`
	CodiceSede  *string      `gorm:"type:text" json:"codice_sede"`
	CodicePdv   *string      `gorm:"type:text" json:"codice_pdv"`
	CreatedAt   time.Time    `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Venue) TableName() string { return "venues" }

// Model is a machine model/game type carrying the default payout-cycle
// parameters. A NULL code is still a valid, distinct match key.
type Model struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	CodiceModello        *string      `gorm:"type:text;index" json:"codice_modello"`
	Nome                 *string      `gorm:"type:text" json:"nome"`
	Manufacturer         *string      `gorm:"type:text" json:"manufacturer"`
	CommercialName       *string      `gorm:"type:text" json:"commercial_name"`
	OfficialName         *string      `gorm:"type:text" json:"official_name"`
	DefaultCycleLengthIn *int64       `json:"default_cycle_length_in"`
	DefaultPayoutPercent *float64     `json:"default_payout_percent"`
	CreatedAt            time.Time    `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Model) TableName() string { return "models" }

// AccessPoint is the venue-side network device (PDA) machines report
// through, keyed by its uppercased MAC address.
type AccessPoint struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	Mac        string        `gorm:"type:text;not null;uniqueIndex" json:"mac"`
	VenueID    *snowflake.ID `gorm:"index" json:"venue_id"`
	LastSeenAt *time.Time    `json:"last_seen_at"`
	CreatedAt  time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (AccessPoint) TableName() string { return "pdas" }

// Machine is one physical gaming unit, keyed by its external codeid.
// UpdatedAt is bumped on reconciliation updates only, never on create, so
// a NULL value means the row was seen exactly once.
type Machine struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	Codeid          string        `gorm:"type:text;not null;uniqueIndex" json:"codeid"`
	CodeidProvv     *string       `gorm:"type:text" json:"codeid_provv"`
	Noe             *string       `gorm:"type:text" json:"noe"`
	ModelloID       *snowflake.ID `gorm:"index" json:"modello_id"`
	EsercizioID     *snowflake.ID `gorm:"index" json:"esercizio_id"`
	Stato           *string       `gorm:"type:text" json:"stato"`
	DataAttivazione *time.Time    `json:"data_attivazione"`
	PercentOutEm    *float64      `json:"percent_out_em"`
	CreatedAt       time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at"`
}

func (Machine) TableName() string { return "machines" }

// MachineDaily is the append-only time series: one row per machine and
// reading date. The (machine_id, data_ultima_lettura_val) pair is the
// upsert key.
type MachineDaily struct {
	ID                     snowflake.ID `gorm:"primaryKey" json:"id"`
	MachineID              snowflake.ID `gorm:"not null;uniqueIndex:idx_machine_daily_reading" json:"machine_id"`
	SnapshotID             snowflake.ID `gorm:"not null;index" json:"snapshot_id"`
	ReadingAt              *time.Time   `gorm:"index" json:"reading_at"`
	DataUltimoCollegamento *time.Time   `json:"data_ultimo_collegamento"`
	GgMancatoCollegamento  *float64     `json:"gg_mancato_collegamento"`
	GgDecadenza            *float64     `json:"gg_decadenza"`
	DataUltimaLetturaVal   *time.Time   `gorm:"uniqueIndex:idx_machine_daily_reading" json:"data_ultima_lettura_val"`
	Cnttotin               *int64       `json:"cnttotin"`
	Cnttotot               *int64       `json:"cnttotot"`
	IncassoGiornaliero     *float64     `json:"incasso_giornaliero"`
	MediaIncassoGg         *float64     `json:"media_incasso_gg"`
	Warning                *string      `gorm:"type:text" json:"warning"`
	Awp                    *string      `gorm:"type:text" json:"awp"`
	MacAddress             *string      `gorm:"type:text" json:"mac_address"`
}

func (MachineDaily) TableName() string { return "machine_daily" }

// CycleConfig is the optional per-machine override of the model's payout
// cycle defaults. At most one row per machine.
type CycleConfig struct {
	MachineID            snowflake.ID `gorm:"primaryKey" json:"machine_id"`
	CycleStartDate       *time.Time   `json:"cycle_start_date"`
	CycleStartInCounter  *int64       `json:"cycle_start_in_counter"`
	CycleStartOutCounter *int64       `json:"cycle_start_out_counter"`
	CycleLengthIn        *int64       `json:"cycle_length_in"`
	TargetPayoutPercent  *float64     `json:"target_payout_percent"`
	Note                 *string      `gorm:"type:text" json:"note"`
	UpdatedAt            time.Time    `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (CycleConfig) TableName() string { return "cycles" }
