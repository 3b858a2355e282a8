package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/openawp/fleettrack/internal/cycle"
	"github.com/openawp/fleettrack/internal/fleet/repository"
)

// IngestSnapshot accepts a multipart workbook upload and runs it through
// ingestion. force=1 re-records a file that was already seen.
func (s *Server) IngestSnapshot(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "missing_file", "no file uploaded"))
		return
	}
	if s.cfg.MaxUploadBytes > 0 && fh.Size > s.cfg.MaxUploadBytes {
		AbortWithError(c, ErrFileTooLarge)
		return
	}

	data, err := readUpload(fh)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	force := c.Query("force") == "1" || c.PostForm("force") == "true"

	result, err := s.ingestSvc.Ingest(c.Request.Context(), fh.Filename, data, force)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	message := "import completed"
	if result.Duplicate {
		message = "file already imported"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "result": result})
}

// ImportModelSheet accepts a homologation sheet PDF and merges its model
// data into the model table.
func (s *Server) ImportModelSheet(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "missing_file", "no file uploaded"))
		return
	}
	if s.cfg.MaxUploadBytes > 0 && fh.Size > s.cfg.MaxUploadBytes {
		AbortWithError(c, ErrFileTooLarge)
		return
	}

	data, err := readUpload(fh)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.modelsheetSvc.ImportPDF(c.Request.Context(), data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "model sheet imported", "result": result})
}

func (s *Server) ListMachines(c *gin.Context) {
	filter := repository.MachineFilter{
		Q:         c.Query("q"),
		Modello:   c.Query("modello"),
		Esercizio: c.Query("esercizio"),
		Stato:     c.Query("stato"),
		Limit:     intQuery(c, "limit", 200),
		Offset:    intQuery(c, "offset", 0),
	}

	rows, err := s.repo.ListMachines(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) GetMachine(c *gin.Context) {
	detail, err := s.repo.GetMachineDetail(c.Request.Context(), c.Param("codeid"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// PutCycleConfig replaces the per-machine cycle override addressed by
// the machine's external code.
func (s *Server) PutCycleConfig(c *gin.Context) {
	machineID, err := s.repo.MachineIDByCodeid(c.Request.Context(), c.Param("codeid"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var in cycle.ConfigInput
	if err := c.ShouldBindJSON(&in); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_json", "malformed request body"))
		return
	}

	if _, err := s.cycleSvc.SetConfig(c.Request.Context(), machineID, in); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) ListModels(c *gin.Context) {
	models, err := s.repo.ListModels(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models)
}

func (s *Server) ModelsSummary(c *gin.Context) {
	rows, err := s.repo.ModelsSummary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) ListModelsADM(c *gin.Context) {
	models, err := s.repo.ListModelsADM(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models)
}

// UpdateModelDefaults fills a model's cycle defaults; absent body fields
// keep their stored values.
func (s *Server) UpdateModelDefaults(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "malformed model id"))
		return
	}

	var body struct {
		DefaultPayoutPercent *float64 `json:"default_payout_percent"`
		DefaultCycleLengthIn *int64   `json:"default_cycle_length_in"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_json", "malformed request body"))
		return
	}

	if err := s.repo.UpdateModelDefaults(c.Request.Context(), id, body.DefaultPayoutPercent, body.DefaultCycleLengthIn); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) ListVenues(c *gin.Context) {
	rows, err := s.repo.ListVenues(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) GetVenueDetail(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "malformed venue id"))
		return
	}

	detail, err := s.repo.GetVenueDetail(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) ListAccessPoints(c *gin.Context) {
	rows, err := s.repo.ListAccessPoints(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) GetAccessPoint(c *gin.Context) {
	row, err := s.repo.GetAccessPoint(c.Request.Context(), c.Param("mac"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) GetAccessPointDetail(c *gin.Context) {
	detail, err := s.repo.GetAccessPointDetail(c.Request.Context(), c.Param("mac"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) EndCycleAlerts(c *gin.Context) {
	limit := intQuery(c, "limit", 100)

	alerts, err := s.cycleSvc.EndCycleAlerts(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) DecayAlerts(c *gin.Context) {
	maxDays := floatQuery(c, "days", 30)
	limit := intQuery(c, "limit", 100)

	alerts, err := s.cycleSvc.DecayAlerts(c.Request.Context(), maxDays, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) Search(c *gin.Context) {
	results, err := s.repo.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func floatQuery(c *gin.Context, key string, def float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}
