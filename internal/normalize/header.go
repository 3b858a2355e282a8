package normalize

import (
	"strings"

	"github.com/gosimple/slug"
)

// headerSynonyms maps every known spreadsheet header spelling to its
// canonical field name. The exports come from several management tools, so
// the same field shows up under many labels; the table is the sole place
// new spellings get added.
var headerSynonyms = map[string]string{
	"codeid":       "codeid",
	"codeid provv": "codeid_provv",

	"descr. stato": "stato",
	"stato":        "stato",

	"data attivazione":          "data_attivazione",
	"data ultimo collegamento":  "data_ultimo_collegamento",
	"gg mancato collegamento":   "gg_mancato_collegamento",
	"gg decadenza":              "gg_decadenza",
	"data ultima lettura val.":  "data_ultima_lettura_val",
	"cnttotin":                  "cnttotin",
	"cnttotot":                  "cnttotot",
	"data rilascio n.o.e.":      "data_rilascio_noe",
	"noe":                       "noe",

	"codice modello":    "codice_modello",
	"cod. modello":      "codice_modello",
	"cod. mod.":         "codice_modello",
	"model code":        "codice_modello",
	"model":             "codice_modello",
	"modello (codice)":  "codice_modello",

	"esercizio":            "esercizio",
	"denomin. sede":        "denominazione",
	"denominazione sede":   "denominazione",
	"denominazione (sede)": "denominazione",
	"denominazione":        "denominazione",

	"codice sede": "codice_sede",
	"codice pdv":  "codice_pdv",
	"cod. sede":   "codice_sede",
	"cod. pdv":    "codice_pdv",

	"indirizzo": "indirizzo",
	"provincia": "provincia",
	"comune":    "comune",

	"macaddress pda":    "mac_address",
	"mac address pda":   "mac_address",
	"macaddress":        "mac_address",
	"mac":               "mac_address",
	"mac (pda)":         "mac_address",
	"mac address (pda)": "mac_address",

	"incasso giornaliero": "incasso_giornaliero",
	"media incasso gg":    "media_incasso_gg",
	"warning":             "warning",
	"ir":                  "ir",
	"awp":                 "awp",

	"% out e/m":      "percent_out_em",
	"percent_out_em": "percent_out_em",
}

// MapHeader resolves a raw header cell to its canonical field name. Unknown
// headers degrade to a slug of themselves so they never break an import;
// downstream code simply ignores fields it does not recognize.
func MapHeader(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := headerSynonyms[key]; ok {
		return canonical
	}
	return strings.ReplaceAll(slug.Make(key), "-", "_")
}
