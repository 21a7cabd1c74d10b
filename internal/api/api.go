// Package api exposes the HTTP side of the game: room creation, lookups,
// join QR codes and an admin listing.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/kiliankoe/chaosdash/internal/game"
	"github.com/kiliankoe/chaosdash/internal/prompt"
)

const qrSize = 320

// Themes lists the prompt themes a room may pick.
type Themes interface {
	Themes() []string
	HasTheme(theme string) bool
}

type Options struct {
	AdminUser string
	AdminPass string
	JoinURL   func(roomID string) string
	// Connections reports live connections per room for the admin listing.
	Connections func(roomID string) int
}

type Handler struct {
	reg    *game.Registry
	themes Themes
	opts   Options
}

func New(reg *game.Registry, themes Themes, opts Options) *Handler {
	if opts.JoinURL == nil {
		opts.JoinURL = func(roomID string) string { return "/?room=" + roomID }
	}
	return &Handler{reg: reg, themes: themes, opts: opts}
}

// Logger logs requests through zerolog, skipping Socket.IO polling noise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("method", c.Request.Method).Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	}
}

// CORS allows the configured origins, or every origin when none are set.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// Register mounts the HTTP routes.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	api := r.Group("/api")
	api.POST("/rooms", h.createRoom)
	api.GET("/rooms/:id", h.getRoom)
	api.GET("/rooms/:id/qr", h.roomQR)
	api.GET("/themes", h.listThemes)

	if h.opts.AdminUser != "" && h.opts.AdminPass != "" {
		admin := api.Group("/admin", gin.BasicAuth(gin.Accounts{h.opts.AdminUser: h.opts.AdminPass}))
		admin.GET("/rooms", h.listRooms)
	}
}

type createRoomReq struct {
	ThemeID string `json:"themeId"`
}

func (h *Handler) createRoom(c *gin.Context) {
	var req createRoomReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}
	theme := strings.TrimSpace(req.ThemeID)
	if theme == "" {
		theme = prompt.DefaultTheme
	}
	if h.themes != nil && !h.themes.HasTheme(theme) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_theme"})
		return
	}
	snap, err := h.reg.CreateRoom(c.Request.Context(), theme)
	if err != nil {
		log.Error().Err(err).Msg("create room failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": game.Reason(err)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"roomId": snap.ID, "theme": snap.Theme, "joinUrl": h.opts.JoinURL(snap.ID)})
}

func roomID(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("id")))
}

func (h *Handler) getRoom(c *gin.Context) {
	snap, err := h.reg.GetRoom(c.Request.Context(), roomID(c))
	if errors.Is(err, game.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": game.Reason(err)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": game.Reason(err)})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) roomQR(c *gin.Context) {
	id := roomID(c)
	if _, err := h.reg.GetRoom(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": game.Reason(err)})
		return
	}
	png, err := qrcode.Encode(h.opts.JoinURL(id), qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Str("room", id).Msg("qr generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) listThemes(c *gin.Context) {
	themes := []string{prompt.DefaultTheme}
	if h.themes != nil {
		themes = h.themes.Themes()
	}
	c.JSON(http.StatusOK, gin.H{"themes": themes})
}

type roomStatus struct {
	game.Summary
	Connections int `json:"connections"`
}

func (h *Handler) listRooms(c *gin.Context) {
	rooms := h.reg.List()
	out := make([]roomStatus, 0, len(rooms))
	for _, r := range rooms {
		st := roomStatus{Summary: r}
		if h.opts.Connections != nil {
			st.Connections = h.opts.Connections(r.ID)
		}
		out = append(out, st)
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}
