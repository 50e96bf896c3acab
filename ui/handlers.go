package ui

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	domain "tpower/domain/power"
	"tpower/internal/errors"
	"tpower/internal/power"
	"tpower/internal/report"
	"tpower/internal/visualize"
)

// oneSampleRequest is the POST body of /api/v1/one-sample. Absent fields take
// the configured defaults.
type oneSampleRequest struct {
	Alpha         float64 `json:"alpha"`
	Power         float64 `json:"power"`
	EffectSize    float64 `json:"effect_size"`
	Tail          string  `json:"tail"`
	MaxSampleSize int     `json:"max_sample_size" binding:"gte=0"`
}

// twoSampleRequest is the POST body of /api/v1/two-sample
type twoSampleRequest struct {
	Alpha         float64 `json:"alpha"`
	Power         float64 `json:"power"`
	EffectSize    float64 `json:"effect_size"`
	Ratio         float64 `json:"ratio"`
	Tail          string  `json:"tail"`
	MaxSampleSize int     `json:"max_sample_size" binding:"gte=0"`
}

// curveRequest is the POST body of /api/v1/curve
type curveRequest struct {
	Kind       string  `json:"kind" binding:"omitempty,oneof=one-sample two-sample"`
	Alpha      float64 `json:"alpha"`
	EffectSize float64 `json:"effect_size"`
	Ratio      float64 `json:"ratio"`
	Tail       string  `json:"tail"`
	From       int     `json:"from" binding:"required"`
	To         int     `json:"to" binding:"required"`
	Format     string  `json:"format" binding:"omitempty,oneof=json xlsx"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// plotQuery holds the query parameters of /api/v1/plot.png
type plotQuery struct {
	Kind       string  `form:"kind" binding:"omitempty,oneof=one-sample two-sample"`
	Alpha      float64 `form:"alpha"`
	Power      float64 `form:"power"`
	EffectSize float64 `form:"d"`
	Ratio      float64 `form:"ratio"`
	Tail       string  `form:"tail"`
}

type oneSampleResponse struct {
	RequestID string                 `json:"request_id"`
	Result    domain.OneSampleResult `json:"result"`
	Summary   string                 `json:"summary"`
}

type twoSampleResponse struct {
	RequestID string                 `json:"request_id"`
	Result    domain.TwoSampleResult `json:"result"`
	Summary   string                 `json:"summary"`
}

// curveRow mirrors domain.CurvePoint with the critical value nulled when it is
// infinite (df = 0), which JSON cannot carry.
type curveRow struct {
	N                int      `json:"n"`
	N2               int      `json:"n2,omitempty"`
	DegreesOfFreedom int      `json:"df"`
	Noncentrality    float64  `json:"delta"`
	CriticalValue    *float64 `json:"t_critical"`
	Power            float64  `json:"power"`
}

type curveResponse struct {
	RequestID string     `json:"request_id"`
	Kind      string     `json:"kind"`
	Points    []curveRow `json:"points"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

func (s *Server) handleOneSample(c *gin.Context) {
	req := oneSampleRequest{
		Alpha:      s.config.OneSample.Alpha,
		Power:      s.config.OneSample.Power,
		EffectSize: s.config.OneSample.EffectSize,
		Tail:       s.config.OneSample.Tail,
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}
	tail, err := parseTail(req.Tail)
	if err != nil {
		s.fail(c, err)
		return
	}

	maxN, err := s.maxSampleSize(req.MaxSampleSize)
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.calculator.SearchOneSampleContext(c.Request.Context(), domain.TestConfiguration{
		Alpha:         req.Alpha,
		PowerTarget:   req.Power,
		EffectSize:    req.EffectSize,
		Tail:          tail,
		MaxSampleSize: maxN,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, oneSampleResponse{
		RequestID: c.GetString(requestIDKey),
		Result:    res,
		Summary:   report.OneSampleSummary(res),
	})
}

func (s *Server) handleTwoSample(c *gin.Context) {
	req := twoSampleRequest{
		Alpha:      s.config.TwoSample.Alpha,
		Power:      s.config.TwoSample.Power,
		EffectSize: s.config.TwoSample.EffectSize,
		Ratio:      s.config.TwoSample.Ratio,
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}
	tail, err := parseTail(req.Tail)
	if err != nil {
		s.fail(c, err)
		return
	}

	maxN, err := s.maxSampleSize(req.MaxSampleSize)
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.calculator.SearchTwoSampleContext(c.Request.Context(), domain.TwoSampleConfiguration{
		Alpha:         req.Alpha,
		PowerTarget:   req.Power,
		EffectSize:    req.EffectSize,
		Ratio:         req.Ratio,
		Tail:          tail,
		MaxSampleSize: maxN,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, twoSampleResponse{
		RequestID: c.GetString(requestIDKey),
		Result:    res,
		Summary:   report.TwoSampleSummary(res),
	})
}

func (s *Server) handleCurve(c *gin.Context) {
	req := curveRequest{
		Kind:       "one-sample",
		Alpha:      s.config.OneSample.Alpha,
		EffectSize: s.config.OneSample.EffectSize,
		Ratio:      s.config.TwoSample.Ratio,
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}
	tail, err := parseTail(req.Tail)
	if err != nil {
		s.fail(c, err)
		return
	}

	var points []domain.CurvePoint
	if req.Kind == "two-sample" {
		points, err = power.CurveTwoSample(req.Alpha, req.EffectSize, req.Ratio, tail, req.From, req.To)
	} else {
		points, err = power.CurveOneSample(req.Alpha, req.EffectSize, tail, req.From, req.To)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	if req.Format == "xlsx" {
		s.writeCurveWorkbook(c, req, tail, points)
		return
	}

	rows := make([]curveRow, len(points))
	for i, p := range points {
		rows[i] = curveRow{
			N:                p.N,
			N2:               p.N2,
			DegreesOfFreedom: p.DegreesOfFreedom,
			Noncentrality:    p.Noncentrality,
			CriticalValue:    domain.FiniteOrNil(p.CriticalValue),
			Power:            p.Power,
		}
	}
	c.JSON(http.StatusOK, curveResponse{RequestID: c.GetString(requestIDKey), Kind: req.Kind, Points: rows})
}

// handlePlot runs a search and renders the null and alternative densities at the result
func (s *Server) handlePlot(c *gin.Context) {
	q := plotQuery{
		Kind:       "one-sample",
		Alpha:      s.config.OneSample.Alpha,
		Power:      s.config.OneSample.Power,
		EffectSize: s.config.OneSample.EffectSize,
		Ratio:      s.config.TwoSample.Ratio,
		Tail:       s.config.OneSample.Tail,
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, errors.ValidationError("invalid query: "+err.Error()))
		return
	}
	tail, err := parseTail(q.Tail)
	if err != nil {
		s.fail(c, err)
		return
	}

	var spec visualize.PlotSpec
	if q.Kind == "two-sample" {
		res, err := s.calculator.SearchTwoSampleContext(c.Request.Context(), domain.TwoSampleConfiguration{
			Alpha:         q.Alpha,
			PowerTarget:   q.Power,
			EffectSize:    q.EffectSize,
			Ratio:         q.Ratio,
			Tail:          tail,
			MaxSampleSize: s.config.Search.MaxSampleSize,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		spec = visualize.TwoSampleSpec(res, q.EffectSize)
	} else {
		res, err := s.calculator.SearchOneSampleContext(c.Request.Context(), domain.TestConfiguration{
			Alpha:         q.Alpha,
			PowerTarget:   q.Power,
			EffectSize:    q.EffectSize,
			Tail:          tail,
			MaxSampleSize: s.config.Search.MaxSampleSize,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		spec = visualize.OneSampleSpec(res)
	}

	img, err := visualize.PNG(spec)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

// writeCurveWorkbook streams the curve as an .xlsx attachment
func (s *Server) writeCurveWorkbook(c *gin.Context, req curveRequest, tail domain.TailMode, points []domain.CurvePoint) {
	params := map[string]string{
		"kind":        req.Kind,
		"alpha":       strconv.FormatFloat(req.Alpha, 'g', -1, 64),
		"effect_size": strconv.FormatFloat(req.EffectSize, 'g', -1, 64),
		"tail":        string(tail),
	}
	if req.Kind == "two-sample" {
		params["ratio"] = strconv.FormatFloat(req.Ratio, 'g', -1, 64)
	}

	var buf bytes.Buffer
	if err := s.workbooks.Write(&buf, params, points); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="power_curve_%s.xlsx"`, req.Kind))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// maxSampleSize resolves a request's search cap. Callers may lower the
// server's cap but never raise it.
func (s *Server) maxSampleSize(requested int) (int, error) {
	limit := s.config.Search.MaxSampleSize
	if limit <= 0 {
		limit = domain.DefaultMaxSampleSize
	}
	if requested > limit {
		return 0, errors.ValidationError(fmt.Sprintf("max_sample_size %d exceeds the server limit of %d", requested, limit))
	}
	if requested > 0 {
		return requested, nil
	}
	return limit, nil
}

func parseTail(raw string) (domain.TailMode, error) {
	tail, err := domain.ParseTailMode(raw)
	if err != nil {
		return "", errors.InvalidEnum(err.Error())
	}
	return tail, nil
}

// fail writes err as JSON with a status derived from its error code
func (s *Server) fail(c *gin.Context, err error) {
	if !errors.IsAppError(err) {
		err = errors.Wrap(err, "unexpected failure")
	}
	code := errors.GetCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("[%s] %s: %v", c.GetString(requestIDKey), c.Request.URL.Path, err)
	} else {
		s.logger.Debug("[%s] %s rejected: %v", c.GetString(requestIDKey), c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: c.GetString(requestIDKey),
	})
}

func statusFor(code string) int {
	switch code {
	case errors.CodeValidationError, errors.CodeInvalidEnum, errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNonConvergent:
		return http.StatusUnprocessableEntity
	case errors.CodeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
