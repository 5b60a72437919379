package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/intake"
	"github.com/joseph-ayodele/finreport/internal/upload"
	"github.com/joseph-ayodele/finreport/internal/workflow"
)

func (s *Server) session(c *gin.Context) (*workflow.Session, bool) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return sess, true
}

func writeSessionError(c *gin.Context, sess *workflow.Session, err error) {
	c.JSON(common.HTTPStatus(err), gin.H{"error": errorPayload(err), "snapshot": sess.Snapshot()})
}

// POST /api/sessions
func (s *Server) createSession(c *gin.Context) {
	sess, err := s.sessions.Create()
	if err != nil {
		s.logger.Error("server.session_create_failed", "error", err)
		writeError(c, err)
		return
	}
	s.logger.Info("server.session_created", "session_id", sess.ID())
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// GET /api/sessions/:id
func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// POST /api/sessions/:id/file (multipart, field "file")
func (s *Server) selectFile(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		writeSessionError(c, sess, common.NewAppError("NO_FILE", "multipart field \"file\" is required", common.ErrInvalidInput))
		return
	}
	src, err := fh.Open()
	if err != nil {
		writeSessionError(c, sess, common.WrapError(err, "open upload"))
		return
	}
	defer src.Close()

	var r io.Reader = src
	if limit := s.opts.Sessions.MaxBytes; limit > 0 {
		r = io.LimitReader(src, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		writeSessionError(c, sess, common.WrapError(err, "read upload"))
		return
	}

	d, err := sess.Select(intake.File{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Data:      data,
	})
	if d == intake.Rejected {
		s.logger.Info("server.file_rejected", "session_id", sess.ID(), "file", fh.Filename, "reason", common.FirstMessage(err))
		c.JSON(http.StatusBadRequest, gin.H{"decision": d.String(), "error": errorPayload(err), "snapshot": sess.Snapshot()})
		return
	}
	if err != nil {
		writeSessionError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decision": d.String(), "snapshot": sess.Snapshot()})
}

type dragRequest struct {
	Action string `json:"action" binding:"required,oneof=enter leave"`
}

// POST /api/sessions/:id/drag
func (s *Server) drag(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req dragRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeSessionError(c, sess, common.NewAppError("INVALID_REQUEST", "action must be enter or leave", common.ErrInvalidInput))
		return
	}
	if req.Action == "enter" {
		sess.DragEnter()
	} else {
		sess.DragLeave()
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

type progressPayload struct {
	Percent      int                    `json:"percent"`
	Status       constants.UploadStatus `json:"status"`
	StatusText   string                 `json:"statusText"`
	ReferenceURL string                 `json:"referenceUrl,omitempty"`
	Snapshot     *workflow.Snapshot     `json:"snapshot,omitempty"`
}

// POST /api/sessions/:id/upload streams "progress" events followed by one
// "done" or "failed" event. A client that goes away does not stop the upload.
func (s *Server) upload(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	events, err := sess.Upload(c.Request.Context())
	if err != nil {
		writeSessionError(c, sess, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("server.upload_client_gone", "session_id", sess.ID())
			return
		case ev, open := <-events:
			if !open {
				return
			}
			name, payload := progressEvent(ev)
			if ev.Terminal {
				snap := sess.Snapshot()
				payload.Snapshot = &snap
			}
			c.SSEvent(name, payload)
			c.Writer.Flush()
			if ev.Terminal {
				return
			}
		}
	}
}

func progressEvent(ev upload.Event) (string, progressPayload) {
	p := progressPayload{
		Percent:      ev.Percent,
		Status:       ev.State.Status,
		StatusText:   ev.State.StatusText(),
		ReferenceURL: ev.State.ReferenceURL,
	}
	switch {
	case !ev.Terminal:
		return "progress", p
	case ev.Err != nil:
		return "failed", p
	default:
		return "done", p
	}
}

// POST /api/sessions/:id/generate
func (s *Server) generate(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	target, err := sess.Generate(c.Request.Context())
	if err != nil {
		writeSessionError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": target, "snapshot": sess.Snapshot()})
}

// POST /api/sessions/:id/reset
func (s *Server) reset(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.Reset(); err != nil {
		writeSessionError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}
