package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/quantumauth-io/nexuslend-client/internal/history"
	"github.com/quantumauth-io/nexuslend-client/internal/orchestrator"
	"github.com/quantumauth-io/nexuslend-client/internal/session"
	"github.com/quantumauth-io/nexuslend-client/internal/valuation"
)

// Reports serves the latest valuation.
type Reports interface {
	Report() valuation.Report
}

// Refresher triggers a full mirror refresh.
type Refresher interface {
	RefreshAll() <-chan struct{}
}

// Sessions is the operation session slot.
type Sessions interface {
	Open(symbol, kind string) (session.View, error)
	SetAmount(amount string) (session.View, error)
	SetMax() (session.View, error)
	Submit() (session.View, error)
	Close()
	Current() (session.View, bool)
}

type Accounts interface {
	Account() (common.Address, bool)
}

type History interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

type Records interface {
	All() []orchestrator.Record
}

type Handler struct {
	reports   Reports
	refresher Refresher
	sessions  Sessions
	accounts  Accounts
	history   History
	records   Records
}

type Deps struct {
	Reports   Reports
	Refresher Refresher
	Sessions  Sessions
	Accounts  Accounts
	History   History
	Records   Records
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		reports:   d.Reports,
		refresher: d.Refresher,
		sessions:  d.Sessions,
		accounts:  d.Accounts,
		history:   d.History,
		records:   d.Records,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /api/account
func (h *Handler) Account(c *gin.Context) {
	addr, ok := h.accounts.Account()
	if !ok {
		c.JSON(http.StatusOK, accountRes{Connected: false})
		return
	}
	c.JSON(http.StatusOK, accountRes{Connected: true, Address: addr.Hex()})
}

// GET /api/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, toDashboard(h.reports.Report()))
}

// GET /api/markets
func (h *Handler) Markets(c *gin.Context) {
	c.JSON(http.StatusOK, toMarkets(h.reports.Report()))
}

// POST /api/refresh?wait=true
func (h *Handler) Refresh(c *gin.Context) {
	done := h.refresher.RefreshAll()
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		select {
		case <-done:
		case <-c.Request.Context().Done():
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "refresh still running"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"refreshing": false})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"refreshing": true})
}

// GET /api/session
func (h *Handler) CurrentSession(c *gin.Context) {
	v, ok := h.sessions.Current()
	res := sessionRes{Open: ok, Records: toRecords(h.records.All())}
	if ok {
		res.Session = &v
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/session
func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := h.sessions.Open(req.Symbol, req.Kind)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, v)
}

// PUT /api/session/amount
func (h *Handler) SetAmount(c *gin.Context) {
	var req setAmountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		v   session.View
		err error
	)
	if req.Max {
		v, err = h.sessions.SetMax()
	} else {
		v, err = h.sessions.SetAmount(req.Amount)
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

// POST /api/session/submit
func (h *Handler) Submit(c *gin.Context) {
	v, err := h.sessions.Submit()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "session": v})
		return
	}
	c.JSON(http.StatusAccepted, v)
}

// DELETE /api/session
func (h *Handler) CloseSession(c *gin.Context) {
	h.sessions.Close()
	c.Status(http.StatusNoContent)
}

// GET /api/history?limit=50
func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	entries, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orchestrator.ErrNotIdle), errors.Is(err, orchestrator.ErrWriteInFlight):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrNoAccount):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
