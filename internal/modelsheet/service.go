package modelsheet

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/openawp/fleettrack/internal/fleet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNoText is returned when the PDF yields no extractable text at all
// (scanned images, empty documents).
var ErrNoText = errors.New("pdf contains no extractable text")

// Result reports how far the import reached into the model table.
type Result struct {
	Lines         int `json:"lines"`
	Parsed        int `json:"parsed"`
	UniqueModels  int `json:"unique_models"`
	MatchedModels int `json:"matched_models"`
	UpdatedRows   int `json:"updated_rows"`
	MissingModels int `json:"missing_models"`
}

type Service struct {
	db    *gorm.DB
	genID *snowflake.Node
	log   *zap.Logger
}

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Log   *zap.Logger
}

func NewService(p Params) *Service {
	return &Service{db: p.DB, genID: p.GenID, log: p.Log}
}

// ImportPDF extracts model records from the sheet and merges them into
// the model table by code. Known models only gain values they are
// missing or get refreshed where the sheet provides one; unknown codes
// are inserted so a later export ingest links straight to them.
func (s *Service) ImportPDF(ctx context.Context, data []byte) (Result, error) {
	lines, err := ExtractLines(data)
	if err != nil {
		return Result{}, err
	}
	if len(lines) == 0 {
		return Result{}, ErrNoText
	}

	parsed := ParseLines(lines)
	records := Consolidate(parsed)

	result, err := s.merge(ctx, records)
	result.Lines = len(lines)
	result.Parsed = len(parsed)
	result.UniqueModels = len(records)
	if err != nil {
		return result, err
	}

	s.log.Info("model sheet imported",
		zap.Int("lines", result.Lines),
		zap.Int("unique_models", result.UniqueModels),
		zap.Int("matched_models", result.MatchedModels),
		zap.Int("missing_models", result.MissingModels),
	)
	return result, nil
}

// merge writes consolidated records into the model table by code.
func (s *Service) merge(ctx context.Context, records []Record) (Result, error) {
	var result Result
	for _, rec := range records {
		var existing domain.Model
		err := s.db.WithContext(ctx).
			Where("codice_modello = ?", rec.CodiceModello).
			First(&existing).Error
		switch {
		case err == nil:
			result.MatchedModels++
			res := s.db.WithContext(ctx).Exec(`
				UPDATE models SET
					default_cycle_length_in = COALESCE(?, default_cycle_length_in),
					default_payout_percent  = COALESCE(?, default_payout_percent),
					official_name           = COALESCE(?, official_name)
				WHERE id = ?`,
				rec.DefaultCycleLengthIn, rec.DefaultPayoutPercent, rec.OfficialName, existing.ID)
			if res.Error != nil {
				return result, res.Error
			}
			result.UpdatedRows += int(res.RowsAffected)
		case errors.Is(err, gorm.ErrRecordNotFound):
			code := rec.CodiceModello
			model := domain.Model{
				ID:                   s.genID.Generate(),
				CodiceModello:        &code,
				Nome:                 rec.OfficialName,
				OfficialName:         rec.OfficialName,
				DefaultCycleLengthIn: rec.DefaultCycleLengthIn,
				DefaultPayoutPercent: rec.DefaultPayoutPercent,
			}
			if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
				return result, err
			}
			result.MissingModels++
		default:
			return result, err
		}
	}
	return result, nil
}
