package cycle

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/openawp/fleettrack/internal/fleet/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	svc  *Service
	db   *gorm.DB
	node *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Venue{}, &domain.Model{}, &domain.Machine{},
		&domain.MachineDaily{}, &domain.CycleConfig{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	return &fixture{svc: NewService(Params{DB: db}), db: db, node: node}
}

func strp(s string) *string { return &s }

func tp(t time.Time) *time.Time { return &t }

func (f *fixture) seedMachine(t *testing.T, codeid string, model *domain.Model, cntIn, cntOut int64, readingDate time.Time) *domain.Machine {
	t.Helper()

	var modelID *snowflake.ID
	if model != nil {
		modelID = &model.ID
	}
	m := domain.Machine{ID: f.node.Generate(), Codeid: codeid, ModelloID: modelID}
	require.NoError(t, f.db.Create(&m).Error)

	daily := domain.MachineDaily{
		ID:                   f.node.Generate(),
		MachineID:            m.ID,
		SnapshotID:           f.node.Generate(),
		DataUltimaLetturaVal: tp(readingDate),
		Cnttotin:             &cntIn,
		Cnttotot:             &cntOut,
	}
	require.NoError(t, f.db.Create(&daily).Error)
	return &m
}

func TestEndCycleAlertsRanking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	model := domain.Model{
		ID:                   f.node.Generate(),
		CodiceModello:        strp("MDL-1"),
		Nome:                 strp("Fruit King"),
		DefaultCycleLengthIn: i64p(30000),
		DefaultPayoutPercent: f64p(0.65),
	}
	require.NoError(t, f.db.Create(&model).Error)

	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	// 18500 still owed against 15000 remaining coin-in: cannot recover.
	f.seedMachine(t, "UNHEALTHY", &model, 75000, 40000, date)
	// Over target already: healthy, 0 left to pay.
	f.seedMachine(t, "OVERPAID", &model, 10000, 9000, date)
	// Healthy with a high in-cycle payout percentage.
	f.seedMachine(t, "ONTRACK", &model, 5000, 3000, date)
	// No counters at all: unrankable, lands last.
	m := domain.Machine{ID: f.node.Generate(), Codeid: "NODATA", ModelloID: &model.ID}
	require.NoError(t, f.db.Create(&m).Error)

	alerts, err := f.svc.EndCycleAlerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 4)

	// Healthy first, ordered by percent-through-cycle descending.
	assert.Equal(t, "OVERPAID", alerts[0].Codeid)
	assert.True(t, alerts[0].Healthy)
	assert.Equal(t, "ONTRACK", alerts[1].Codeid)
	assert.True(t, alerts[1].Healthy)
	assert.Equal(t, "UNHEALTHY", alerts[2].Codeid)
	assert.False(t, alerts[2].Healthy)
	assert.Equal(t, "NODATA", alerts[3].Codeid)
	assert.Nil(t, alerts[3].PctThroughCycle)

	// Percent fields come back scaled for display.
	require.NotNil(t, alerts[0].TargetPayoutPercent)
	assert.InDelta(t, 65.0, *alerts[0].TargetPayoutPercent, 1e-9)
	require.NotNil(t, alerts[1].CurrentPayoutPct)
	assert.InDelta(t, 60.0, *alerts[1].CurrentPayoutPct, 1e-9)
	require.NotNil(t, alerts[1].PctThroughCycle)
	assert.InDelta(t, 5000.0/30000.0*100, *alerts[1].PctThroughCycle, 1e-9)

	require.NotNil(t, alerts[1].Modello)
	assert.Equal(t, "Fruit King", *alerts[1].Modello)
}

func TestEndCycleAlertsRankByCycleProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	model := domain.Model{
		ID:                   f.node.Generate(),
		CodiceModello:        strp("MDL-1"),
		DefaultCycleLengthIn: i64p(30000),
		DefaultPayoutPercent: f64p(0.65),
	}
	require.NoError(t, f.db.Create(&model).Error)

	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	// Both healthy. EARLY has the higher in-cycle payout percentage (90%),
	// DEEP is much further through the cycle (96.7% vs 3.3%); progress wins.
	f.seedMachine(t, "EARLY", &model, 1000, 900, date)
	f.seedMachine(t, "DEEP", &model, 29000, 19000, date)

	alerts, err := f.svc.EndCycleAlerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, "DEEP", alerts[0].Codeid)
	assert.True(t, alerts[0].Healthy)
	require.NotNil(t, alerts[0].PctThroughCycle)
	assert.InDelta(t, 29000.0/30000.0*100, *alerts[0].PctThroughCycle, 1e-9)
	require.NotNil(t, alerts[0].CurrentPayoutPct)
	assert.InDelta(t, 19000.0/29000.0*100, *alerts[0].CurrentPayoutPct, 1e-9)

	assert.Equal(t, "EARLY", alerts[1].Codeid)
	assert.True(t, alerts[1].Healthy)
	require.NotNil(t, alerts[1].CurrentPayoutPct)
	assert.InDelta(t, 90.0, *alerts[1].CurrentPayoutPct, 1e-9)
}

func TestEndCycleAlertsOverrideBeatsModelDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	model := domain.Model{
		ID:                   f.node.Generate(),
		CodiceModello:        strp("MDL-1"),
		DefaultCycleLengthIn: i64p(30000),
		DefaultPayoutPercent: f64p(0.65),
	}
	require.NoError(t, f.db.Create(&model).Error)

	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	m := f.seedMachine(t, "M-001", &model, 75000, 40000, date)

	_, err := f.svc.SetConfig(ctx, m.ID, ConfigInput{
		CycleLengthIn:       i64p(50000),
		TargetPayoutPercent: f64p(0.70),
	})
	require.NoError(t, err)

	alerts, err := f.svc.EndCycleAlerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	require.NotNil(t, alerts[0].CycleLengthIn)
	assert.Equal(t, int64(50000), *alerts[0].CycleLengthIn)
	require.NotNil(t, alerts[0].TargetPayoutPercent)
	assert.InDelta(t, 70.0, *alerts[0].TargetPayoutPercent, 1e-9)
	// One 50000 cycle done, 25000 into the second.
	require.NotNil(t, alerts[0].CyclesDone)
	assert.Equal(t, int64(1), *alerts[0].CyclesDone)
	assert.Equal(t, int64(25000), *alerts[0].InCurrent)
}

func TestEndCycleAlertsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	model := domain.Model{
		ID:                   f.node.Generate(),
		DefaultCycleLengthIn: i64p(30000),
		DefaultPayoutPercent: f64p(0.65),
	}
	require.NoError(t, f.db.Create(&model).Error)

	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	f.seedMachine(t, "A", &model, 5000, 3000, date)
	f.seedMachine(t, "B", &model, 5000, 2000, date)
	f.seedMachine(t, "C", &model, 5000, 1000, date)

	alerts, err := f.svc.EndCycleAlerts(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestDecayAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	urgent := f.seedMachine(t, "URGENT", nil, 1000, 500, date)
	soon := f.seedMachine(t, "SOON", nil, 1000, 500, date)
	fine := f.seedMachine(t, "FINE", nil, 1000, 500, date)

	set := func(m *domain.Machine, days float64) {
		require.NoError(t, f.db.Model(&domain.MachineDaily{}).
			Where("machine_id = ?", m.ID).
			Update("gg_decadenza", days).Error)
	}
	set(urgent, 3)
	set(soon, 20)
	set(fine, 120)

	alerts, err := f.svc.DecayAlerts(ctx, 30, 100)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "URGENT", alerts[0].Codeid)
	assert.Equal(t, "SOON", alerts[1].Codeid)
}

func TestSetConfigReplacesExistingRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := domain.Machine{ID: f.node.Generate(), Codeid: "M-001"}
	require.NoError(t, f.db.Create(&m).Error)

	_, err := f.svc.SetConfig(ctx, m.ID, ConfigInput{
		CycleLengthIn: i64p(30000),
		Note:          strp("first"),
	})
	require.NoError(t, err)

	_, err = f.svc.SetConfig(ctx, m.ID, ConfigInput{
		CycleLengthIn: i64p(40000),
	})
	require.NoError(t, err)

	var cfg domain.CycleConfig
	require.NoError(t, f.db.First(&cfg, "machine_id = ?", m.ID).Error)
	require.NotNil(t, cfg.CycleLengthIn)
	assert.Equal(t, int64(40000), *cfg.CycleLengthIn)
	// Whole-row replacement: the old note is gone.
	assert.Nil(t, cfg.Note)

	var count int64
	require.NoError(t, f.db.Model(&domain.CycleConfig{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func i64p(v int64) *int64 { return &v }

func f64p(v float64) *float64 { return &v }
