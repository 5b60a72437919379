package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/storage"
)

const maxJobsPage = 500

func documentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, common.NewAppError("INVALID_ID", "document id must be a UUID", common.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/documents/:id/jobs?limit=N
func (s *Server) listJobs(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > maxJobsPage {
		writeError(c, common.NewAppError("INVALID_LIMIT", fmt.Sprintf("limit must be between 1 and %d", maxJobsPage), common.ErrInvalidInput))
		return
	}
	jobs, err := s.opts.Jobs.ListByDocument(c.Request.Context(), id, limit)
	if err != nil {
		s.logger.Error("server.list_jobs_failed", "document_id", id, "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// GET /api/documents/:id/jobs.xlsx
func (s *Server) jobsXLSX(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	data, err := s.opts.Exporter.JobsXLSX(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("server.jobs_xlsx_failed", "document_id", id, "error", err)
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="extractions-%s.xlsx"`, id))
	c.Data(http.StatusOK, mediaTypeXLSX, data)
}

// GET /files/:name serves a stored document to the extraction service.
func (s *Server) serveFile(c *gin.Context) {
	id, ok := strings.CutSuffix(c.Param("name"), "."+constants.ExtPDF)
	if !ok {
		writeError(c, storage.ErrNotFound)
		return
	}
	f, err := s.opts.Files.Open(id)
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", constants.MediaTypePDF)
	http.ServeContent(c.Writer, c.Request, st.Name(), st.ModTime(), f)
}
