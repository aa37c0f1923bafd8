package server

import (
	"errors"
	"net/http"

	"golang-pool-streamer/internal/chain"
	"golang-pool-streamer/internal/holders"
	"golang-pool-streamer/internal/poolinfo"
	"golang-pool-streamer/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type healthResponse struct {
	Success       bool           `json:"success"`
	Status        string         `json:"status"`
	Trades        int            `json:"trades"`
	Subscribers   int            `json:"subscribers"`
	UptimeSeconds float64        `json:"uptimeSeconds"`
	Pool          string         `json:"pool"`
	PoolInfo      poolinfo.Stats `json:"poolInfo"`
}

type holdersResponse struct {
	Success bool `json:"success"`
	holders.Stats
}

func (s *Server) health(c *gin.Context) {
	resp := healthResponse{
		Success:     true,
		Status:      "ok",
		Trades:      s.hub.Len(),
		Subscribers: s.hub.SubscriberCount(),
		Pool:        s.pool,
		PoolInfo:    s.poolInfo.GetStats(),
	}
	if s.metrics != nil {
		resp.UptimeSeconds = s.metrics.Uptime().Seconds()
	}
	c.JSON(http.StatusOK, resp)
}

// poolProxy relays the upstream pool-info reply verbatim.
func (s *Server) poolProxy(c *gin.Context) {
	resp, err := s.poolInfo.Fetch(c.Request.Context())
	if err != nil {
		msg := utils.SanitizeError(err)
		logrus.WithField("error", msg).Warn("⚠️ Pool info proxy failed")
		c.JSON(http.StatusBadGateway, failure{Message: msg})
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}

func (s *Server) holderCount(c *gin.Context) {
	mint := c.Query("mint")
	if mint == "" {
		mint = s.tokenMint
	}

	stats, err := s.holders.Get(c.Request.Context(), mint)
	switch {
	case errors.Is(err, holders.ErrMintNotFound):
		c.JSON(http.StatusNotFound, failure{Message: err.Error()})
		return
	case errors.Is(err, chain.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, failure{Message: err.Error()})
		return
	case err != nil:
		msg := utils.SanitizeError(err)
		logrus.WithFields(logrus.Fields{
			"mint":  utils.SanitizeAddress(mint),
			"error": msg,
		}).Error("❌ Holder count failed")
		c.JSON(http.StatusInternalServerError, failure{Message: msg})
		return
	}

	c.JSON(http.StatusOK, holdersResponse{Success: true, Stats: stats})
}
