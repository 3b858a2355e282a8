// Package service implements workbook ingestion on top of the entity
// resolver and the daily time series store.
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/xuri/excelize/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	fleetdomain "github.com/openawp/fleettrack/internal/fleet/domain"
	"github.com/openawp/fleettrack/internal/fleet/resolver"
	"github.com/openawp/fleettrack/internal/ingest/domain"
	"github.com/openawp/fleettrack/internal/normalize"
	"github.com/openawp/fleettrack/internal/observability/metrics"
	"github.com/openawp/fleettrack/internal/timeseries"
	"github.com/openawp/fleettrack/pkg/db"
)

type service struct {
	db       *gorm.DB
	resolver *resolver.Resolver
	daily    *timeseries.Store
	genID    *snowflake.Node
	metrics  *metrics.IngestMetrics
	log      *zap.Logger
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Resolver *resolver.Resolver
	Daily    *timeseries.Store
	GenID    *snowflake.Node
	Metrics  *metrics.IngestMetrics
	Log      *zap.Logger
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		resolver: p.Resolver,
		daily:    p.Daily,
		genID:    p.GenID,
		metrics:  p.Metrics,
		log:      p.Log,
	}
}

// row wraps one data row with the header index for named access.
type row struct {
	cells []string
	index map[string]int
}

func (r row) get(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r row) getPtr(name string) *string {
	if v := r.get(name); v != "" {
		return &v
	}
	return nil
}

func (s *service) Ingest(ctx context.Context, filename string, data []byte, force bool) (domain.Result, error) {
	fileHash := hashBytes(data)
	if force {
		fileHash = fmt.Sprintf("%s::force::%d", fileHash, time.Now().UnixMilli())
	}

	if !force {
		var existing fleetdomain.Snapshot
		err := s.db.WithContext(ctx).Where("file_hash = ?", fileHash).First(&existing).Error
		switch {
		case err == nil:
			s.metrics.RecordSnapshot("duplicate")
			uploadedAt := existing.UploadedAt
			return domain.Result{
				Duplicate:  true,
				SnapshotID: existing.ID,
				UploadedAt: &uploadedAt,
			}, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return domain.Result{}, err
		}
	}

	rows, err := readFirstSheet(data)
	if err != nil {
		s.metrics.RecordSnapshot("error")
		return domain.Result{}, err
	}
	if len(rows) < 2 {
		s.metrics.RecordSnapshot("error")
		return domain.Result{}, domain.ErrEmptySheet
	}

	header := make([]string, len(rows[0]))
	index := make(map[string]int, len(rows[0]))
	for i, raw := range rows[0] {
		canonical := normalize.MapHeader(raw)
		header[i] = canonical
		if _, seen := index[canonical]; !seen {
			index[canonical] = i
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return domain.Result{}, err
	}

	snapshot := fleetdomain.Snapshot{
		ID:        s.genID.Generate(),
		FileHash:  fileHash,
		RowsCount: len(rows) - 1,
		Header:    headerJSON,
	}
	if filename != "" {
		snapshot.SourceFilename = &filename
	}
	if err := s.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
		s.metrics.RecordSnapshot("error")
		return domain.Result{}, err
	}

	result := domain.Result{SnapshotID: snapshot.ID}

	for _, cells := range rows[1:] {
		r := row{cells: cells, index: index}

		codeid := r.get("codeid")
		if codeid == "" {
			continue
		}

		if err := s.ingestRow(ctx, snapshot.ID, codeid, r, &result); err != nil {
			s.metrics.RecordSnapshot("error")
			return result, fmt.Errorf("row codeid=%s: %w", codeid, err)
		}
	}

	s.metrics.RecordSnapshot("ok")
	s.metrics.RecordRows("inserted", result.InsertedDaily)
	s.metrics.RecordRows("skipped", result.SkippedDaily)

	s.log.Info("snapshot ingested",
		zap.String("file", filename),
		zap.Bool("force", force),
		zap.Int("rows", snapshot.RowsCount),
		zap.Int("created_machines", result.CreatedMachines),
		zap.Int("updated_machines", result.UpdatedMachines),
		zap.Int("inserted_daily", result.InsertedDaily),
		zap.Int("skipped_daily", result.SkippedDaily),
	)

	return result, nil
}

func (s *service) ingestRow(ctx context.Context, snapshotID snowflake.ID, codeid string, r row, result *domain.Result) error {
	modelID, err := s.resolver.UpsertModel(ctx, r.getPtr("codice_modello"), r.getPtr("modello"))
	if err != nil {
		return err
	}

	venueName := r.getPtr("denominazione")
	if venueName == nil {
		venueName = r.getPtr("esercizio")
	}
	venueID, err := s.resolver.UpsertVenue(ctx, resolver.VenueFields{
		Nome:       venueName,
		Indirizzo:  r.getPtr("indirizzo"),
		Comune:     r.getPtr("comune"),
		Provincia:  r.getPtr("provincia"),
		CodiceSede: r.getPtr("codice_sede"),
		CodicePdv:  r.getPtr("codice_pdv"),
	})
	if err != nil {
		return err
	}

	readingAt := normalize.ParseDateTime(r.get("data_ultima_lettura_val"))

	mac := normalize.NormalizeMAC(r.get("mac_address"))
	if _, err := s.resolver.UpsertAccessPoint(ctx, mac, &venueID, readingAt); err != nil {
		return err
	}

	percentOutEm := normalize.NormalizePercent(normalize.ParseNumber(r.get("percent_out_em")))

	machineID, created, err := s.resolver.UpsertMachine(ctx, resolver.MachineFields{
		Codeid:          codeid,
		CodeidProvv:     r.getPtr("codeid_provv"),
		Noe:             r.getPtr("noe"),
		ModelloID:       &modelID,
		EsercizioID:     &venueID,
		Stato:           r.getPtr("stato"),
		DataAttivazione: normalize.ParseDateTime(r.get("data_attivazione")),
		PercentOutEm:    percentOutEm,
	})
	if err != nil {
		return err
	}
	if created {
		result.CreatedMachines++
	} else {
		result.UpdatedMachines++
	}

	daily := timeseries.Row{
		MachineID:              machineID,
		SnapshotID:             snapshotID,
		ReadingAt:              readingAt,
		DataUltimoCollegamento: normalize.ParseDateTime(r.get("data_ultimo_collegamento")),
		GgMancatoCollegamento:  normalize.ParseNumber(r.get("gg_mancato_collegamento")),
		GgDecadenza:            normalize.ParseNumber(r.get("gg_decadenza")),
		DataUltimaLetturaVal:   readingAt,
		Cnttotin:               dropCents(normalize.ParseNumber(r.get("cnttotin"))),
		Cnttotot:               dropCents(normalize.ParseNumber(r.get("cnttotot"))),
		IncassoGiornaliero:     normalize.ParseNumber(r.get("incasso_giornaliero")),
		MediaIncassoGg:         normalize.ParseNumber(r.get("media_incasso_gg")),
		Warning:                r.getPtr("warning"),
		Awp:                    r.getPtr("awp"),
	}
	if mac != "" {
		daily.MacAddress = &mac
	}

	// The entities above are already reconciled at this point; a failed
	// time-series write only costs this row's reading.
	if err := s.daily.UpsertDaily(ctx, daily); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			s.log.Warn("daily reading skipped",
				zap.String("codeid", codeid),
				zap.Error(err),
			)
		}
		result.SkippedDaily++
		return nil
	}
	result.InsertedDaily++
	return nil
}

// readFirstSheet returns the formatted cell grid of the workbook's first
// sheet.
func readFirstSheet(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, domain.ErrEmptySheet
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// dropCents strips the two implied decimal digits of a lifetime counter,
// flooring toward minus infinity.
func dropCents(v *float64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(math.Floor(*v / 100))
	return &n
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
