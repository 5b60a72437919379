package server

import (
	"bytes"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/chart"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/extract"
)

const mediaTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type chartResponse struct {
	Periods map[constants.Period]string `json:"periods"`
	Charts  []chart.View                `json:"charts"`
	Links   map[string]string           `json:"links,omitempty"`
}

// decode reads the transported result from the request address. It never
// fails: an absent or damaged payload yields an empty result.
func (s *Server) decode(c *gin.Context) (extract.Result, chart.Charts) {
	res := s.opts.Sessions.Navigator.FromURL(c.Request.URL)
	return res, s.opts.Normalizer.Normalize(res)
}

// GET /chart
func (s *Server) chartJSON(c *gin.Context) {
	res, charts := s.decode(c)
	c.JSON(http.StatusOK, chartResponse{
		Periods: map[constants.Period]string{
			constants.PeriodA: s.opts.Normalizer.PeriodALabel,
			constants.PeriodB: s.opts.Normalizer.PeriodBLabel,
		},
		Charts: s.opts.Formatter.PresentAll(charts),
		Links:  s.renderLinks(res),
	})
}

// renderLinks re-encodes res onto the PNG and XLSX addresses so a client can
// fetch the rendered forms of the same data.
func (s *Server) renderLinks(res extract.Result) map[string]string {
	nav := s.opts.Sessions.Navigator
	bases := map[string]string{
		"xlsx": s.opts.ChartPath + ".xlsx",
	}
	for _, p := range constants.Periods {
		bases["png"+string(p)] = s.opts.ChartPath + ".png?period=" + string(p)
	}
	links := make(map[string]string, len(bases))
	for name, base := range bases {
		target, err := nav.Target(base, res)
		if err != nil {
			s.logger.Warn("server.chart_link_failed", "link", name, "error", err)
			continue
		}
		links[name] = target
	}
	return links
}

// GET /chart.png?period=A|B
func (s *Server) chartPNG(c *gin.Context) {
	p := constants.Period(strings.ToUpper(c.DefaultQuery("period", string(constants.PeriodA))))
	if !slices.Contains(constants.Periods, p) {
		writeError(c, common.NewAppError("INVALID_PERIOD", "period must be A or B", common.ErrInvalidInput))
		return
	}
	_, charts := s.decode(c)
	var buf bytes.Buffer
	if err := s.opts.Formatter.RenderPNG(&buf, charts, p); err != nil {
		s.logger.Error("server.chart_png_failed", "period", p, "error", err)
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// GET /chart.xlsx
func (s *Server) chartXLSX(c *gin.Context) {
	_, charts := s.decode(c)
	data, err := s.opts.Exporter.ChartsXLSX(charts, s.opts.Formatter)
	if err != nil {
		s.logger.Error("server.chart_xlsx_failed", "error", err)
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="financials.xlsx"`)
	c.Data(http.StatusOK, mediaTypeXLSX, data)
}
