// Package resolver reconciles export rows against the slowly-changing
// reference entities (models, venues, access points, machines).
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/openawp/fleettrack/internal/fleet/domain"
	"github.com/openawp/fleettrack/internal/normalize"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Resolver upserts reference entities with deterministic match keys.
// Operations are direct row mutations with no internal retry: a
// unique-constraint race surfaces to the caller.
type Resolver struct {
	db    *gorm.DB
	genID *snowflake.Node
}

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
}

func New(p Params) *Resolver {
	return &Resolver{db: p.DB, genID: p.GenID}
}

// UpsertModel matches a model by code (NULL code matches NULL code). On a
// hit the name fills only when currently NULL; on a miss a new row is
// inserted with code and name as given.
func (r *Resolver) UpsertModel(ctx context.Context, code, name *string) (snowflake.ID, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Model{})
	if code == nil {
		stmt = stmt.Where("codice_modello IS NULL")
	} else {
		stmt = stmt.Where("codice_modello = ?", *code)
	}

	var existing domain.Model
	err := stmt.First(&existing).Error
	switch {
	case err == nil:
		if name != nil {
			if err := r.db.WithContext(ctx).Exec(
				`UPDATE models SET nome = COALESCE(nome, ?) WHERE id = ?`, *name, existing.ID,
			).Error; err != nil {
				return 0, err
			}
		}
		return existing.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		model := domain.Model{ID: r.genID.Generate(), CodiceModello: code, Nome: name}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return 0, err
		}
		return model.ID, nil
	default:
		return 0, err
	}
}

// VenueFields carries the raw venue columns of one export row.
type VenueFields struct {
	Nome       *string
	Indirizzo  *string
	Comune     *string
	Provincia  *string
	CodiceSede *string
	CodicePdv  *string
}

// UpsertVenue matches on the full (nome, indirizzo, comune, provincia)
// tuple, treating NULL and '' as equal. On a hit the location fields and
// site codes refresh with new-value-wins-unless-NULL semantics; on a miss
// a row is inserted under the synthesized name.
func (r *Resolver) UpsertVenue(ctx context.Context, fields VenueFields) (snowflake.ID, error) {
	nome := normalize.BuildVenueName(
		deref(fields.Nome), deref(fields.Indirizzo), deref(fields.Comune), deref(fields.Provincia),
	)

	var existing domain.Venue
	err := r.db.WithContext(ctx).
		Where(`nome = ? AND COALESCE(indirizzo,'') = COALESCE(?,'')
			AND COALESCE(comune,'') = COALESCE(?,'')
			AND COALESCE(provincia,'') = COALESCE(?,'')`,
			nome, fields.Indirizzo, fields.Comune, fields.Provincia).
		First(&existing).Error
	switch {
	case err == nil:
		if err := r.db.WithContext(ctx).Exec(
			`UPDATE venues
			 SET indirizzo   = COALESCE(?, indirizzo),
			     comune      = COALESCE(?, comune),
			     provincia   = COALESCE(?, provincia),
			     codice_sede = COALESCE(?, codice_sede),
			     codice_pdv  = COALESCE(?, codice_pdv)
			 WHERE id = ?`,
			fields.Indirizzo, fields.Comune, fields.Provincia,
			fields.CodiceSede, fields.CodicePdv, existing.ID,
		).Error; err != nil {
			return 0, err
		}
		return existing.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		venue := domain.Venue{
			ID:         r.genID.Generate(),
			Nome:       nome,
			Indirizzo:  fields.Indirizzo,
			Comune:     fields.Comune,
			Provincia:  fields.Provincia,
			CodiceSede: fields.CodiceSede,
			CodicePdv:  fields.CodicePdv,
		}
		if err := r.db.WithContext(ctx).Create(&venue).Error; err != nil {
			return 0, err
		}
		return venue.ID, nil
	default:
		return 0, err
	}
}

// UpsertAccessPoint records the PDA sighting for a MAC. Empty MACs are a
// no-op returning nil; otherwise the venue link and last-seen timestamp
// refresh on every sighting.
func (r *Resolver) UpsertAccessPoint(ctx context.Context, mac string, venueID *snowflake.ID, seenAt *time.Time) (*snowflake.ID, error) {
	mac = normalize.NormalizeMAC(mac)
	if mac == "" {
		return nil, nil
	}

	var existing domain.AccessPoint
	err := r.db.WithContext(ctx).Where("mac = ?", mac).First(&existing).Error
	switch {
	case err == nil:
		if err := r.db.WithContext(ctx).Model(&domain.AccessPoint{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{"venue_id": venueID, "last_seen_at": seenAt}).Error; err != nil {
			return nil, err
		}
		return &existing.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		pda := domain.AccessPoint{
			ID:         r.genID.Generate(),
			Mac:        mac,
			VenueID:    venueID,
			LastSeenAt: seenAt,
		}
		if err := r.db.WithContext(ctx).Create(&pda).Error; err != nil {
			return nil, err
		}
		return &pda.ID, nil
	default:
		return nil, err
	}
}

// MachineFields carries the machine columns of one export row.
type MachineFields struct {
	Codeid          string
	CodeidProvv     *string
	Noe             *string
	ModelloID       *snowflake.ID
	EsercizioID     *snowflake.ID
	Stato           *string
	DataAttivazione *time.Time
	PercentOutEm    *float64
}

// UpsertMachine matches by codeid. On a hit every mutable field overwrites
// unconditionally and updated_at is bumped; on a miss the row is inserted
// with updated_at left NULL. The created flag lets the caller keep
// create/update counts without a second read.
func (r *Resolver) UpsertMachine(ctx context.Context, fields MachineFields) (snowflake.ID, bool, error) {
	var existing domain.Machine
	err := r.db.WithContext(ctx).Where("codeid = ?", fields.Codeid).First(&existing).Error
	switch {
	case err == nil:
		now := time.Now().UTC()
		if err := r.db.WithContext(ctx).Model(&domain.Machine{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"codeid_provv":     fields.CodeidProvv,
				"noe":              fields.Noe,
				"modello_id":       fields.ModelloID,
				"esercizio_id":     fields.EsercizioID,
				"stato":            fields.Stato,
				"data_attivazione": fields.DataAttivazione,
				"percent_out_em":   fields.PercentOutEm,
				"updated_at":       now,
			}).Error; err != nil {
			return 0, false, err
		}
		return existing.ID, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		machine := domain.Machine{
			ID:              r.genID.Generate(),
			Codeid:          fields.Codeid,
			CodeidProvv:     fields.CodeidProvv,
			Noe:             fields.Noe,
			ModelloID:       fields.ModelloID,
			EsercizioID:     fields.EsercizioID,
			Stato:           fields.Stato,
			DataAttivazione: fields.DataAttivazione,
			PercentOutEm:    fields.PercentOutEm,
		}
		if err := r.db.WithContext(ctx).Create(&machine).Error; err != nil {
			return 0, false, err
		}
		return machine.ID, true, nil
	default:
		return 0, false, err
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
