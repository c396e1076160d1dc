package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"version":  s.catalog.Version(),
		"features": s.catalog.Features(),
		"limits":   s.catalog.Limits(),
		"plans":    s.catalog.Plans(),
		"addons":   s.catalog.Addons(),
	}})
}
