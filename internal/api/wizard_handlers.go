package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleStartDraft(c *gin.Context) {
	var req startDraftRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	snap, err := s.svc.StartDraft(caller(c), req.PatientCode, req.BirthDate, language(c, req.Language))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (s *Server) handleGetDraft(c *gin.Context) {
	snap, err := s.svc.GetDraft(caller(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleAnswerDraft merges the raw JSON body into the draft's answers.
func (s *Server) handleAnswerDraft(c *gin.Context) {
	patch, err := c.GetRawData()
	if err != nil {
		s.respondError(c, err)
		return
	}
	if len(patch) == 0 {
		s.respondError(c, errEmptyBody)
		return
	}

	snap, err := s.svc.AnswerDraft(caller(c), c.Param("id"), patch)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleNextStep(c *gin.Context) {
	snap, err := s.svc.NextStep(caller(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handlePreviousStep(c *gin.Context) {
	snap, err := s.svc.PreviousStep(caller(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleCompleteDraft(c *gin.Context) {
	var req completeDraftRequest
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			s.respondError(c, err)
			return
		}
	}

	out, err := s.svc.CompleteDraft(c.Request.Context(), caller(c), c.Param("id"), req.RecipientEmail)
	s.respondOutcome(c, out, err, http.StatusCreated)
}

func (s *Server) handleAbandonDraft(c *gin.Context) {
	if err := s.svc.AbandonDraft(caller(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
