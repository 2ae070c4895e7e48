package daemon

import (
	"io"
	"net/http"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/gin-gonic/gin"
)

// CommunicationErrorCode is the wire value for opsmodel.CommunicationError,
// used by the recovery middleware where no Daemon method call ever started.
const CommunicationErrorCode = int(opsmodel.CommunicationError)

var invalidControlIP = opsmodel.NewResult(opsmodel.InvalidControlIP)

func resultJSON(r opsmodel.Result) gin.H {
	return gin.H{"code": int(r.Code), "message": r.Message}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.daemon.Status())
}

func (s *Server) handleHealth(c *gin.Context) {
	health := s.daemon.Health(c.Request.Context())
	status := http.StatusOK
	if health.Overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func (s *Server) handleDomeControl(c *gin.Context) {
	var body struct {
		Auto bool `json:"auto"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, resultJSON(opsmodel.NewResult(opsmodel.Failed)))
		return
	}
	result := s.daemon.DomeControl(c.Request.Context(), body.Auto)
	s.daemon.recordCommand(c.Request.Context(), "dome_control", callerAddr(c), result)
	c.JSON(http.StatusOK, resultJSON(opsmodel.NewResult(result)))
}

func (s *Server) handleTelControl(c *gin.Context) {
	var body struct {
		Auto bool `json:"auto"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, resultJSON(opsmodel.NewResult(opsmodel.Failed)))
		return
	}
	result := s.daemon.TelControl(c.Request.Context(), body.Auto)
	s.daemon.recordCommand(c.Request.Context(), "tel_control", callerAddr(c), result)
	c.JSON(http.StatusOK, resultJSON(opsmodel.NewResult(result)))
}

func (s *Server) handleStopTelescope(c *gin.Context) {
	result := s.daemon.StopTelescope()
	s.daemon.recordCommand(c.Request.Context(), "stop_telescope", callerAddr(c), result)
	c.JSON(http.StatusOK, resultJSON(opsmodel.NewResult(result)))
}

func (s *Server) handleClearDomeWindow(c *gin.Context) {
	result := s.daemon.ClearDomeWindow()
	s.daemon.recordCommand(c.Request.Context(), "clear_dome_window", callerAddr(c), result)
	c.JSON(http.StatusOK, resultJSON(opsmodel.NewResult(result)))
}

func (s *Server) handleScheduleObservations(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, resultJSON(opsmodel.NewResult(opsmodel.Failed)))
		return
	}
	result, errs := s.daemon.ScheduleObservations(c.Request.Context(), raw)
	s.daemon.recordCommand(c.Request.Context(), "schedule_observations", callerAddr(c), result)

	out := resultJSON(opsmodel.NewResult(result))
	if len(errs) > 0 {
		out["errors"] = errs
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleNotifyFrame(c *gin.Context) {
	var headers map[string]interface{}
	if err := c.ShouldBindJSON(&headers); err != nil {
		headers = map[string]interface{}{}
	}
	extra := s.daemon.NotifyProcessedFrame(headers)
	c.JSON(http.StatusOK, extra)
}

func (s *Server) handleNotifyGuide(c *gin.Context) {
	var body struct {
		Headers map[string]interface{} `json:"headers"`
		X       []float64              `json:"x"`
		Y       []float64              `json:"y"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{})
		return
	}
	extra := s.daemon.NotifyGuideProfile(body.Headers, body.X, body.Y)
	c.JSON(http.StatusOK, extra)
}
