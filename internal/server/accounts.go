package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/partnersync/internal/audit/domain"
	accountdomain "github.com/smallbiznis/partnersync/internal/account/domain"
)

func (s *Server) ProvisionAccount(c *gin.Context) {
	var req accountdomain.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accountSvc.Provision(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionAccountProvision, auditdomain.TargetAccount, resp.ID, map[string]any{
		"person_type": string(req.PersonType),
		"document":    req.Document,
	})
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetAccount(c *gin.Context) {
	resp, err := s.accountSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SyncAccount(c *gin.Context) {
	resp, err := s.accountSvc.SyncStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionAccountSync, auditdomain.TargetAccount, resp.ID, nil)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelAccount(c *gin.Context) {
	var req accountdomain.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accountSvc.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionAccountCancel, auditdomain.TargetAccount, resp.ID, map[string]any{
		"remove_reason": req.Reason,
	})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
