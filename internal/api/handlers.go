// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/extractor"
	"github.com/ytgate/ytgate/internal/jobs"
	"github.com/ytgate/ytgate/internal/storage"
	"github.com/ytgate/ytgate/internal/validate"
)

// handleHealth aggregates readiness; /liveness is the pure alive signal.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.handleReadiness(w, r)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Health.Liveness())
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := s.Health.Readiness(r.Context())
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// infoResponse is the metadata payload; formats live on their own endpoint.
type infoResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Duration    float64              `json:"duration,omitempty"`
	Uploader    string               `json:"uploader,omitempty"`
	UploadDate  string               `json:"upload_date,omitempty"`
	ViewCount   int64                `json:"view_count,omitempty"`
	Thumbnail   string               `json:"thumbnail,omitempty"`
	Description string               `json:"description,omitempty"`
	Subtitles   []extractor.Subtitle `json:"subtitles,omitempty"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.Pipeline.FetchInfo(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := infoResponse{
		ID:          info.ID,
		Title:       info.Title,
		Duration:    info.Duration,
		Uploader:    info.Uploader,
		UploadDate:  info.UploadDate,
		ViewCount:   info.ViewCount,
		Thumbnail:   info.Thumbnail,
		Description: info.Description,
	}
	if r.URL.Query().Get("include_subtitles") == "true" {
		resp.Subtitles = info.Subtitles
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	info, err := s.Pipeline.FetchInfo(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      info.ID,
		"title":   info.Title,
		"formats": info.Formats,
	})
}

// downloadRequest is the POST /download body.
type downloadRequest struct {
	URL              string `json:"url"`
	FormatID         string `json:"format_id,omitempty"`
	OutputTemplate   string `json:"output_template,omitempty"`
	ExtractAudio     bool   `json:"extract_audio,omitempty"`
	AudioFormat      string `json:"audio_format,omitempty"`
	AudioQuality     string `json:"audio_quality,omitempty"`
	IncludeSubtitles bool   `json:"include_subtitles,omitempty"`
	SubtitleLang     string `json:"subtitle_lang,omitempty"`
}

func (r downloadRequest) validate() error {
	if err := validate.URL(r.URL); err != nil {
		return err
	}
	if err := validate.FormatID(r.FormatID); err != nil {
		return err
	}
	if err := validate.AudioFormat(r.AudioFormat); err != nil {
		return err
	}
	if err := validate.AudioQuality(r.AudioQuality); err != nil {
		return err
	}
	return validate.SubtitleLang(r.SubtitleLang)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errs.Wrap(errs.CodeInvalidFormat, "malformed request body", err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	// Validation failures must never create a job: resolve provider and
	// template before touching the store.
	prov, err := s.Dispatcher.Dispatch(req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.Pipeline.Renderer.Resolve(req.OutputTemplate); err != nil {
		writeError(w, r, err)
		return
	}

	job := s.Store.Create(req.URL, prov.Name(), jobs.Params{
		FormatID:       req.FormatID,
		OutputTemplate: req.OutputTemplate,
		ExtractAudio:   req.ExtractAudio,
		AudioFormat:    req.AudioFormat,
		AudioQuality:   req.AudioQuality,
		Subtitles:      req.IncludeSubtitles,
		SubtitleLang:   req.SubtitleLang,
		Priority:       jobs.PriorityDownload,
	})

	position, err := s.Scheduler.Enqueue(job.ID, job.Params.Priority)
	if err != nil {
		// rejected admissions never leave a job behind
		s.Store.Discard(job.ID)
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":         job.ID,
		"state":          job.State,
		"queue_position": position,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	state := jobs.State(r.URL.Query().Get("status"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, errs.Newf(errs.CodeInvalidFormat, "invalid limit %q", raw))
			return
		}
		limit = n
	}
	list := s.Store.List(state, limit)
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list, "count": len(list)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.Store.Get(id)
	if !ok {
		writeError(w, r, errs.Newf(errs.CodeJobNotFound, "job %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Scheduler.Stats())
}

func providerParam(r *http.Request) string {
	p := r.URL.Query().Get("provider")
	if p == "" {
		p = "youtube"
	}
	return p
}

func (s *Server) handleValidateCookie(w http.ResponseWriter, r *http.Request) {
	prov := providerParam(r)
	valid, err := s.Cookies.Validate(r.Context(), prov)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.Dispatcher.SetDegraded(prov, !valid, "credential failed validation")
	writeJSON(w, http.StatusOK, map[string]any{"provider": prov, "valid": valid})
}

func (s *Server) handleReloadCookie(w http.ResponseWriter, r *http.Request) {
	prov := providerParam(r)
	if err := s.Cookies.Reload(r.Context(), prov); err != nil {
		// a rejected replacement is a client-supplied-credential problem
		if errs.CodeOf(err) == errs.CodeCookieExpired {
			writeErrorStatus(w, r, err, http.StatusBadRequest)
			return
		}
		writeError(w, r, err)
		return
	}
	s.Dispatcher.SetDegraded(prov, false, "")
	writeJSON(w, http.StatusOK, map[string]any{"provider": prov, "reloaded": true})
}

func (s *Server) handleCookieStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.Cookies.StatusAll()})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DryRun bool `json:"dry_run"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, errs.Wrap(errs.CodeInvalidFormat, "malformed request body", err))
			return
		}
	}
	report, err := s.Reaper.Sweep(r.Context(), storage.SweepOptions{Force: true, DryRun: req.DryRun})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
