package public

import (
	handlershared "github.com/enroll-next/internal/http/handlers/shared"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
)

func getAgentID(c *gin.Context) (uint, bool) {
	return handlershared.CurrentAgentID(c)
}

func currentViewer(c *gin.Context) (service.Viewer, bool) {
	return handlershared.CurrentViewer(c)
}
