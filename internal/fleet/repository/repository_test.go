package repository

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
	repo *Repository
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
		&domain.Snapshot{}, &domain.Venue{}, &domain.Model{},
		&domain.AccessPoint{}, &domain.Machine{},
		&domain.MachineDaily{}, &domain.CycleConfig{},
	))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	return &fixture{repo: New(Params{DB: db}), db: db, node: node}
}

func strp(s string) *string { return &s }

func i64p(v int64) *int64 { return &v }

func tp(t time.Time) *time.Time { return &t }

func (f *fixture) seedWorld(t *testing.T) (domain.Venue, domain.Model, domain.Machine) {
	t.Helper()

	venue := domain.Venue{
		ID: f.node.Generate(), Nome: "BAR SPORT",
		Indirizzo: strp("VIA ROMA 1"), Comune: strp("MILANO"), Provincia: strp("MI"),
	}
	require.NoError(t, f.db.Create(&venue).Error)

	model := domain.Model{
		ID: f.node.Generate(), CodiceModello: strp("MDL-1"), Nome: strp("Fruit King"),
	}
	require.NoError(t, f.db.Create(&model).Error)

	machine := domain.Machine{
		ID: f.node.Generate(), Codeid: "M-001",
		ModelloID: &model.ID, EsercizioID: &venue.ID, Stato: strp("ATTIVO"),
	}
	require.NoError(t, f.db.Create(&machine).Error)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		reading := base.AddDate(0, 0, day)
		daily := domain.MachineDaily{
			ID:                   f.node.Generate(),
			MachineID:            machine.ID,
			SnapshotID:           f.node.Generate(),
			ReadingAt:            tp(reading),
			DataUltimaLetturaVal: tp(reading),
			Cnttotin:             i64p(int64(1000 + day)),
			Cnttotot:             i64p(int64(600 + day)),
			MacAddress:           strp("AA:BB:CC:DD:EE:FF"),
		}
		require.NoError(t, f.db.Create(&daily).Error)
	}
	return venue, model, machine
}

func TestListMachinesLatestCounters(t *testing.T) {
	f := newFixture(t)
	f.seedWorld(t)

	rows, err := f.repo.ListMachines(context.Background(), MachineFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "M-001", row.Codeid)
	require.NotNil(t, row.Esercizio)
	assert.Equal(t, "BAR SPORT", *row.Esercizio)
	require.NotNil(t, row.Modello)
	assert.Equal(t, "Fruit King", *row.Modello)
	require.NotNil(t, row.LastCnttotin)
	assert.Equal(t, int64(1002), *row.LastCnttotin, "the newest reading wins")
}

func TestListMachinesFilters(t *testing.T) {
	f := newFixture(t)
	f.seedWorld(t)

	other := domain.Machine{ID: f.node.Generate(), Codeid: "X-999", Stato: strp("DISMESSO")}
	require.NoError(t, f.db.Create(&other).Error)

	ctx := context.Background()

	rows, err := f.repo.ListMachines(ctx, MachineFilter{Q: "M-0"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "M-001", rows[0].Codeid)

	rows, err = f.repo.ListMachines(ctx, MachineFilter{Stato: "DISMESSO"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "X-999", rows[0].Codeid)

	rows, err = f.repo.ListMachines(ctx, MachineFilter{Esercizio: "BAR SPORT", Modello: "Fruit King"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = f.repo.ListMachines(ctx, MachineFilter{Esercizio: "ALTRO"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetMachineDetail(t *testing.T) {
	f := newFixture(t)
	_, _, machine := f.seedWorld(t)

	cfg := domain.CycleConfig{MachineID: machine.ID, CycleLengthIn: i64p(30000)}
	require.NoError(t, f.db.Create(&cfg).Error)

	detail, err := f.repo.GetMachineDetail(context.Background(), "M-001")
	require.NoError(t, err)
	assert.Equal(t, "M-001", detail.Machine.Codeid)
	require.NotNil(t, detail.Machine.Esercizio)
	assert.Equal(t, "BAR SPORT", *detail.Machine.Esercizio)
	require.Len(t, detail.Daily, 3)
	assert.Equal(t, int64(1002), *detail.Daily[0].Cnttotin, "history is newest first")
	require.NotNil(t, detail.Cycle)
	assert.Equal(t, int64(30000), *detail.Cycle.CycleLengthIn)

	_, err = f.repo.GetMachineDetail(context.Background(), "NOPE")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestModelsSummary(t *testing.T) {
	f := newFixture(t)
	_, model, _ := f.seedWorld(t)

	second := domain.Machine{ID: f.node.Generate(), Codeid: "M-002", ModelloID: &model.ID}
	require.NoError(t, f.db.Create(&second).Error)
	orphan := domain.Machine{ID: f.node.Generate(), Codeid: "M-003"}
	require.NoError(t, f.db.Create(&orphan).Error)

	rows, err := f.repo.ModelsSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Modello)
	assert.Equal(t, "Fruit King", *rows[0].Modello)
	assert.Equal(t, int64(2), rows[0].NumMachines)
	assert.Nil(t, rows[1].Modello)
}

func TestUpdateModelDefaults(t *testing.T) {
	f := newFixture(t)
	_, model, _ := f.seedWorld(t)
	ctx := context.Background()

	require.NoError(t, f.repo.UpdateModelDefaults(ctx, model.ID, f64p(0.70), nil))
	require.NoError(t, f.repo.UpdateModelDefaults(ctx, model.ID, nil, i64p(28000)))

	var m domain.Model
	require.NoError(t, f.db.First(&m, "id = ?", model.ID).Error)
	require.NotNil(t, m.DefaultPayoutPercent)
	assert.InDelta(t, 0.70, *m.DefaultPayoutPercent, 1e-9)
	require.NotNil(t, m.DefaultCycleLengthIn)
	assert.Equal(t, int64(28000), *m.DefaultCycleLengthIn)

	err := f.repo.UpdateModelDefaults(ctx, f.node.Generate(), f64p(0.5), nil)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListVenuesWithCounts(t *testing.T) {
	f := newFixture(t)
	f.seedWorld(t)

	empty := domain.Venue{ID: f.node.Generate(), Nome: "TABACCHI"}
	require.NoError(t, f.db.Create(&empty).Error)

	rows, err := f.repo.ListVenues(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "BAR SPORT", rows[0].Nome)
	assert.Equal(t, int64(1), rows[0].NumMachines)
	assert.Equal(t, "TABACCHI", rows[1].Nome)
	assert.Equal(t, int64(0), rows[1].NumMachines)
}

func TestGetVenueDetail(t *testing.T) {
	f := newFixture(t)
	venue, _, _ := f.seedWorld(t)

	pda := domain.AccessPoint{
		ID: f.node.Generate(), Mac: "AA:BB:CC:DD:EE:FF", VenueID: &venue.ID,
	}
	require.NoError(t, f.db.Create(&pda).Error)

	detail, err := f.repo.GetVenueDetail(context.Background(), venue.ID)
	require.NoError(t, err)
	assert.Equal(t, "BAR SPORT", detail.Venue.Nome)
	require.Len(t, detail.Machines, 1)
	assert.Equal(t, "M-001", detail.Machines[0].Codeid)
	require.NotNil(t, detail.Machines[0].Cnttotin)
	assert.Equal(t, int64(1002), *detail.Machines[0].Cnttotin)
	require.Len(t, detail.Pdas, 1)

	_, err = f.repo.GetVenueDetail(context.Background(), f.node.Generate())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAccessPointDetail(t *testing.T) {
	f := newFixture(t)
	venue, _, _ := f.seedWorld(t)

	pda := domain.AccessPoint{
		ID: f.node.Generate(), Mac: "AA:BB:CC:DD:EE:FF", VenueID: &venue.ID,
	}
	require.NoError(t, f.db.Create(&pda).Error)

	detail, err := f.repo.GetAccessPointDetail(context.Background(), "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", detail.Pda.Mac)
	require.Len(t, detail.Machines, 1)
	assert.Equal(t, "M-001", detail.Machines[0].Codeid)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	venue, _, _ := f.seedWorld(t)

	pda := domain.AccessPoint{
		ID: f.node.Generate(), Mac: "AA:BB:CC:DD:EE:FF", VenueID: &venue.ID,
	}
	require.NoError(t, f.db.Create(&pda).Error)

	ctx := context.Background()

	results, err := f.repo.Search(ctx, "M-001")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "MACCHINA", results[0].Kind)
	assert.Equal(t, "M-001", results[0].Label)
	assert.Equal(t, "BAR SPORT", results[0].Sub)

	// MACs match with the colons stripped too.
	results, err = f.repo.Search(ctx, "AABBCC")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "PDA", results[0].Kind)

	results, err = f.repo.Search(ctx, "MILANO")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "LOCALE", results[0].Kind)
	assert.Equal(t, "VIA ROMA 1 - MILANO - MI", results[0].Sub)

	results, err = f.repo.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func f64p(v float64) *float64 { return &v }
