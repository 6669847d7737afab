package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nutricheck-server/internal/export"
)

func (s *Server) handleListPractices(c *gin.Context) {
	list, err := s.svc.ListPractices(c.Request.Context(), caller(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"practices": list})
}

func (s *Server) handleUpdatePractice(c *gin.Context) {
	var req practiceRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	p, err := s.svc.UpdatePractice(c.Request.Context(), caller(c), c.Param("id"), req.Name, req.Email)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeletePractice(c *gin.Context) {
	if err := s.svc.DeletePractice(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePracticeScreenings(c *gin.Context) {
	s.listScreenings(c, c.Param("id"))
}

// handleExport buffers the workbook so a failure can still produce a JSON error.
func (s *Server) handleExport(c *gin.Context) {
	id := c.Param("id")
	lang := language(c, c.Query("lang"))

	var buf bytes.Buffer
	if err := s.svc.ExportPractice(c.Request.Context(), caller(c), id, lang, &buf); err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="screenings-%s.xlsx"`, id))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (s *Server) handleGetCCEmail(c *gin.Context) {
	addr, err := s.svc.CCEmail(c.Request.Context(), caller(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": addr})
}

func (s *Server) handleSetCCEmail(c *gin.Context) {
	var req ccEmailRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	if err := s.svc.SetCCEmail(c.Request.Context(), caller(c), req.Email); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": req.Email})
}
