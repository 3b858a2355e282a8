package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapHeaderSynonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"CodeID", "codeid"},
		{"  codeid provv ", "codeid_provv"},
		{"Descr. Stato", "stato"},
		{"Data Ultima Lettura Val.", "data_ultima_lettura_val"},
		{"Cod. Mod.", "codice_modello"},
		{"MODEL CODE", "codice_modello"},
		{"Denomin. Sede", "denominazione"},
		{"MAC Address (PDA)", "mac_address"},
		{"% out e/m", "percent_out_em"},
		{"Incasso Giornaliero", "incasso_giornaliero"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapHeader(tt.raw), "header %q", tt.raw)
	}
}

func TestMapHeaderFallbackSlug(t *testing.T) {
	// Unknown headers become predictable slugs rather than errors.
	assert.Equal(t, "colonna_sconosciuta", MapHeader("Colonna Sconosciuta"))
	assert.Equal(t, "perc_attivita", MapHeader("Perc. Attività"))
	assert.Equal(t, "modello", MapHeader("Modello"))
}
