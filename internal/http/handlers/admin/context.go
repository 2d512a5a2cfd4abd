package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/enroll-next/internal/http/handlers/shared"
	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
)

func getAgentID(c *gin.Context) (uint, bool) {
	return handlershared.CurrentAgentID(c)
}

func currentViewer(c *gin.Context) (service.Viewer, bool) {
	return handlershared.CurrentViewer(c)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "ID 非法", err)
		return 0, false
	}
	return uint(id), true
}

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
