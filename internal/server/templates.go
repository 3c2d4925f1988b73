package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/template"
)

func supplierParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("supplierID"))
	if err != nil {
		return uuid.Nil, common.NewAppError(common.CodeInvalidInput, "invalid supplier id", err)
	}
	return id, nil
}

func (s *Server) listTemplates(c *gin.Context) {
	supplierID, err := supplierParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	list, err := s.templates.List(c.Request.Context(), supplierID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getActiveTemplate(c *gin.Context) {
	supplierID, err := supplierParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	tpl, err := s.templates.Active(c.Request.Context(), supplierID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

type trainRequest struct {
	Fragment string `json:"fragment" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
}

// trainTemplate compiles a highlighted fragment and returns the would-be
// merged config. The UI persists it explicitly via saveTemplate.
func (s *Server) trainTemplate(c *gin.Context) {
	supplierID, err := supplierParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req trainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "invalid request body", err))
		return
	}

	res, err := s.templates.Train(c.Request.Context(), supplierID,
		req.Fragment, constants.FieldKind(req.Kind))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type saveTemplateRequest struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config" binding:"required"`
}

func (s *Server) saveTemplate(c *gin.Context) {
	supplierID, err := supplierParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req saveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "invalid request body", err))
		return
	}

	cfg, err := template.ParseConfig(req.Config)
	if err != nil {
		s.fail(c, err)
		return
	}
	tpl, err := s.templates.SaveVersion(c.Request.Context(), supplierID, req.Name, cfg)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (s *Server) activateTemplate(c *gin.Context) {
	supplierID, err := supplierParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	templateID, err := uuid.Parse(c.Param("templateID"))
	if err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "invalid template id", err))
		return
	}

	if err := s.templates.Activate(c.Request.Context(), supplierID, templateID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activated": templateID})
}
