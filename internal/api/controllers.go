package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mt5-gateway/internal/session"
	"mt5-gateway/internal/trade"
	"mt5-gateway/pkg/mt5"
)

type connectRequest struct {
	Server   string `json:"server" binding:"required,min=1"`
	Login    int64  `json:"login" binding:"required,gt=0"`
	Password string `json:"password" binding:"required,min=1"`
}

type placeOrderRequest struct {
	Symbol     string  `json:"symbol" binding:"required,min=1"`
	Side       string  `json:"side" binding:"required,oneof=BUY SELL"`
	Volume     float64 `json:"volume" binding:"required,gt=0"`
	SLDistance float64 `json:"sl_distance" binding:"gte=0"`
	TPDistance float64 `json:"tp_distance" binding:"gte=0"`
	Comment    string  `json:"comment" binding:"max=120"`
	Magic      int64   `json:"magic"`
}

type closePositionRequest struct {
	Ticket uint64  `json:"ticket" binding:"required,gt=0"`
	Volume float64 `json:"volume" binding:"gte=0"`
	Symbol string  `json:"symbol"`
}

type journalQuery struct {
	Limit int `form:"limit"`
}

func (q *journalQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// respondVenueError maps gateway errors to HTTP statuses and stable codes.
func respondVenueError(c *gin.Context, err error) {
	var (
		authErr      *session.AuthError
		posErr       *trade.PositionNotFoundError
		volErr       *trade.VolumeError
		orderErr     *trade.OrderFailedError
		closeErr     *trade.CloseFailedError
		exhaustedErr *trade.CloseExhaustedError
	)
	switch {
	case errors.Is(err, session.ErrNotConnected):
		respondError(c, http.StatusConflict, "NOT_CONNECTED", err.Error())
	case errors.Is(err, session.ErrInitFailed):
		respondError(c, http.StatusBadGateway, "INIT_FAILED", err.Error())
	case errors.Is(err, session.ErrAutoTradingDisabled):
		respondError(c, http.StatusForbidden, "AUTOTRADING_DISABLED", err.Error())
	case errors.As(err, &authErr):
		respondError(c, http.StatusUnauthorized, "LOGIN_FAILED", err.Error())
	case errors.Is(err, trade.ErrSymbolNotSelected), errors.Is(err, trade.ErrSymbolNotFound):
		respondError(c, http.StatusNotFound, "SYMBOL_NOT_FOUND", err.Error())
	case errors.Is(err, trade.ErrNotTradable):
		respondError(c, http.StatusUnprocessableEntity, "NOT_TRADABLE", err.Error())
	case errors.Is(err, trade.ErrNoPrice):
		respondError(c, http.StatusServiceUnavailable, "NO_PRICE", err.Error())
	case errors.Is(err, trade.ErrNoFillingMode):
		respondError(c, http.StatusUnprocessableEntity, "NO_FILLING_MODE", err.Error())
	case errors.As(err, &posErr):
		respondError(c, http.StatusNotFound, "POSITION_NOT_FOUND", err.Error())
	case errors.As(err, &volErr):
		respondError(c, http.StatusBadRequest, "INVALID_VOLUME", err.Error())
	case errors.As(err, &orderErr):
		respondError(c, http.StatusUnprocessableEntity, "ORDER_REJECTED", err.Error())
	case errors.As(err, &exhaustedErr):
		respondError(c, http.StatusUnprocessableEntity, "CLOSE_EXHAUSTED", err.Error())
	case errors.As(err, &closeErr):
		respondError(c, http.StatusUnprocessableEntity, "CLOSE_REJECTED", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func (s *Server) connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}

	info, err := s.Gateway.Connect(req.Server, req.Login, req.Password)
	if err != nil {
		respondVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"account": info.Account,
	})
}

func (s *Server) disconnect(c *gin.Context) {
	if err := s.Gateway.Disconnect(); err != nil {
		respondVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) listSymbols(c *gin.Context) {
	symbols, err := s.Gateway.Symbols()
	if err != nil {
		respondVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

func (s *Server) getSymbol(c *gin.Context) {
	symbol := c.Param("symbol")
	info, err := s.Gateway.SymbolInfo(symbol)
	if err != nil {
		respondVenueError(c, err)
		return
	}

	fillings := make([]string, 0, 3)
	for _, f := range info.FillingMask.Supported() {
		fillings = append(fillings, f.String())
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":        info.Name,
		"point":         info.Point,
		"digits":        info.Digits,
		"spread":        info.Spread,
		"trade_mode":    info.TradeMode,
		"volume_min":    info.VolumeMin,
		"volume_max":    info.VolumeMax,
		"volume_step":   info.VolumeStep,
		"stops_level":   info.StopsLevel,
		"filling_modes": fillings,
	})
}

// getSymbolFilling reports the execution modes the instrument accepts right
// now, in selection priority order.
func (s *Server) getSymbolFilling(c *gin.Context) {
	symbol := c.Param("symbol")
	info, err := s.Gateway.SymbolInfo(symbol)
	if err != nil {
		respondVenueError(c, err)
		return
	}

	supported := info.FillingMask.Supported()
	fillings := make([]string, 0, len(supported))
	for _, f := range supported {
		fillings = append(fillings, f.String())
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":        info.Name,
		"filling_modes": fillings,
	})
}

func (s *Server) getPrice(c *gin.Context) {
	symbol := c.Param("symbol")
	data, err := s.Gateway.GetPrice(symbol)
	if err != nil {
		respondVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}

	res, err := s.Gateway.PlaceOrder(trade.OrderRequest{
		Symbol:     req.Symbol,
		Volume:     req.Volume,
		Side:       mt5.Side(req.Side),
		SLDistance: req.SLDistance,
		TPDistance: req.TPDistance,
		Comment:    req.Comment,
		Magic:      req.Magic,
	})
	if err != nil {
		respondVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  res,
	})
}

func (s *Server) listPositions(c *gin.Context) {
	positions, err := s.Gateway.Positions()
	if err != nil {
		respondVenueError(c, err)
		return
	}
	out := make([]gin.H, 0, len(positions))
	for _, p := range positions {
		out = append(out, gin.H{
			"ticket":        p.Ticket,
			"symbol":        p.Symbol,
			"side":          p.Side,
			"volume":        p.Volume,
			"price_open":    p.PriceOpen,
			"price_current": p.PriceCurrent,
			"sl":            p.SL,
			"tp":            p.TP,
			"profit":        p.Profit,
			"open_time":     p.OpenTime,
			"comment":       p.Comment,
			"magic":         p.Magic,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"positions": out,
		"count":     len(out),
	})
}

func (s *Server) closePosition(c *gin.Context) {
	var req closePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}

	res, err := s.Gateway.ClosePosition(trade.CloseRequest{
		Ticket: req.Ticket,
		Volume: req.Volume,
		Symbol: req.Symbol,
	})
	if err != nil {
		respondVenueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  res,
	})
}

func (s *Server) journalOrders(c *gin.Context) {
	var q journalQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	q.normalize()

	records, err := s.DB.ListOrders(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": records,
		"count":  len(records),
	})
}

func (s *Server) journalCloses(c *gin.Context) {
	var q journalQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	q.normalize()

	records, err := s.DB.ListCloses(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"closes": records,
		"count":  len(records),
	})
}
