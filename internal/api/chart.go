package api

import (
	"bytes"
	"net/http"

	"github.com/banshee-data/rehab.report/internal/evaluator"
	"github.com/banshee-data/rehab.report/internal/httputil"
	"github.com/banshee-data/rehab.report/internal/report"
)

// reportSession collects what a chart draws, from the live session when
// there is one and from storage otherwise.
func (s *Server) reportSession(id string) (report.Session, bool, error) {
	var rs report.Session
	if s.withSession(id, func(ev *evaluator.Evaluator) {
		_, cfg := ev.Exercise()
		rs.Summary = ev.Summary()
		rs.Summary.SessionID = id
		rs.Config = cfg
		rs.Frames = ev.Frames()
	}) {
		return rs, true, nil
	}
	if s.db == nil {
		return rs, false, nil
	}
	stored, err := s.db.GetSession(id)
	if err != nil {
		return rs, false, err
	}
	frames, err := s.db.ListFrames(id)
	if err != nil {
		return rs, false, err
	}
	return report.Session{Summary: stored.Summary, Config: stored.Config, Frames: frames}, true, nil
}

// getChart renders the session's angle trace: HTML by default, PNG with
// ?format=png.
func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	rs, found, err := s.reportSession(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		httputil.NotFound(w, "session not found")
		return
	}

	var buf bytes.Buffer
	contentType := "text/html; charset=utf-8"
	switch format := r.URL.Query().Get("format"); format {
	case "", "html":
		err = report.WriteHTML(&buf, rs)
	case "png":
		contentType = "image/png"
		err = report.WritePNG(&buf, rs)
	default:
		httputil.BadRequest(w, "format must be html or png")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(buf.Bytes())
}
