package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	redisrepo "github.com/diodesmelts/red-whale-render-sub002/internal/repository/redis"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/admin"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/finalizer"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/query"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service/reservation"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Shopper API
	r.POST("/competitions/:id/reservations", handleReserve(svcs, idem))
	r.DELETE("/competitions/:id/reservations/:holderID", handleReleaseHolder(svcs))
	r.POST("/competitions/:id/reservations/:holderID/extend", handleExtend(svcs))
	r.GET("/competitions/:id/contention", handleContention(svcs))
	r.GET("/competitions/:id/inventory", handleInventory(svcs))
	r.GET("/competitions/:id/tickets", handleListTickets(svcs))

	// Payment collaborator callbacks. Reachable only from inside the
	// deployment; the public ingress never routes /internal.
	internal := r.Group("/internal")
	{
		internal.POST("/payments/confirmed", handlePaymentConfirmed(svcs))
		internal.POST("/payments/failed", handlePaymentFailed(svcs))
	}

	// Admin API
	// TODO: add admin middleware
	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/competitions/:id/tickets", handleInitPool(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Reserve tickets (idempotent)
// @Param    id  path  int  true  "Competition ID"
// @Param    req body  ReserveRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} ReserveResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "competition not found"
// @Failure  409 {object} ErrorResponse "numbers unavailable / idem in progress"
// @Failure  422 {object} ErrorResponse "per-holder limit exceeded"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  503 {object} ErrorResponse "not enough tickets available"
// @Router   /competitions/{id}/reservations [post]
func handleReserve(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		competitionID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ReserveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemReserve(competitionID, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		res, err := svcs.Reservation.Reserve(
			c.Request.Context(),
			competitionID,
			req.HolderID,
			req.Numbers,
			req.Quantity,
			req.MaxPerHolder,
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := ReserveResponse{
			Numbers:       res.Numbers,
			ReservedUntil: res.ReservedUntil.UTC().Format(time.RFC3339),
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Release all of a holder's reservations
// @Param    id        path  int     true  "Competition ID"
// @Param    holderID  path  string  true  "Holder ID"
// @Success  204
// @Router   /competitions/{id}/reservations/{holderID} [delete]
func handleReleaseHolder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		competitionID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		_, err := svcs.Reservation.ReleaseAll(c.Request.Context(), competitionID, c.Param("holderID"))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary  Extend a live hold
// @Param    id        path  int     true  "Competition ID"
// @Param    holderID  path  string  true  "Holder ID"
// @Success  200 {object} ExtendResponse
// @Failure  409 {object} ErrorResponse "hold expired"
// @Router   /competitions/{id}/reservations/{holderID}/extend [post]
func handleExtend(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		competitionID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		until, err := svcs.Reservation.Extend(c.Request.Context(), competitionID, c.Param("holderID"))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ExtendResponse{ReservedUntil: until.UTC().Format(time.RFC3339)})
	}
}

// @Summary  Numbers actively held by other shoppers
// @Param    id       path   int     true   "Competition ID"
// @Param    exclude  query  string  false  "Holder ID whose own holds to omit"
// @Success  200 {object} ContentionResponse
// @Router   /competitions/{id}/contention [get]
func handleContention(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		competitionID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		numbers, err := svcs.Query.Contention(c.Request.Context(), competitionID, c.Query("exclude"))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ContentionResponse{Numbers: numbers})
	}
}

// @Summary  Inventory counters
// @Param    id  path  int  true  "Competition ID"
// @Success  200  {object}  domain.InventoryCounts
// @Router   /competitions/{id}/inventory [get]
func handleInventory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		competitionID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		counts, err := svcs.Query.Inventory(c.Request.Context(), competitionID)
		if err != nil {
			respondErr(c, err)
			return
		}

		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, counts, "public, max-age=15", true)
	}
}

// @Summary  List tickets
// @Param    id     path   int     true  "Competition ID"
// @Param    only   query  string  false "available"
// @Param    limit  query  int     false "page size"
// @Param    offset query  int     false "offset"
// @Success  200  {array}   TicketView
// @Router   /competitions/{id}/tickets [get]
func handleListTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		competitionID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		onlyAvailable := c.Query("only") == "available"
		limit := parseIntDefault(c.Query("limit"), 0)
		offset := parseIntDefault(c.Query("offset"), 0)

		tickets, err := svcs.Query.ListTickets(c.Request.Context(), competitionID, onlyAvailable, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]TicketView, 0, len(tickets))
		for _, t := range tickets {
			out = append(out, TicketView{
				Number:   t.Number,
				Status:   string(t.Status),
				HolderID: t.HolderID,
			})
		}

		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}

// @Summary  Payment confirmed callback
// @Param    req body  PaymentConfirmedRequest true "payload"
// @Success  200
// @Failure  409 {object} ErrorResponse "paid reservation lost"
// @Router   /internal/payments/confirmed [post]
func handlePaymentConfirmed(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentConfirmedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		entryID, err := uuid.Parse(req.EntryID)
		if err != nil {
			badRequest(c, "invalid entry_id")
			return
		}

		if err := svcs.Finalizer.PaymentConfirmed(
			c.Request.Context(),
			req.CompetitionID,
			req.HolderID,
			req.Numbers,
			entryID,
		); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "purchased"})
	}
}

// @Summary  Payment failed callback
// @Param    req body  PaymentFailedRequest true "payload"
// @Success  200
// @Router   /internal/payments/failed [post]
func handlePaymentFailed(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentFailedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.Finalizer.PaymentFailed(
			c.Request.Context(),
			req.CompetitionID,
			req.HolderID,
			req.Numbers,
		); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "released"})
	}
}

// @Summary  Initialize ticket pool
// @Param    id  path  int  true  "Competition ID"
// @Param    req body  InitPoolRequest true "payload"
// @Success  201 {object} InitPoolResponse
// @Router   /admin/competitions/{id}/tickets [post]
func handleInitPool(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		competitionID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req InitPoolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		created, err := svcs.Admin.InitPool(c.Request.Context(), competitionID, req.TotalTickets)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, InitPoolResponse{Created: created})
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var unavail *reservation.UnavailableNumbersError
	if errors.As(err, &unavail) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:       "numbers unavailable",
			Unavailable: unavail.Numbers,
		})
		return
	}

	var limited *reservation.RateLimitedError
	if errors.As(err, &limited) {
		c.Header("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())+1))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: limited.Error()})
		return
	}

	switch {
	// reservation service
	case errors.Is(err, reservation.ErrCompetitionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "competition not found"})
	case errors.Is(err, reservation.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
	case errors.Is(err, reservation.ErrLimitExceeded):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "per-holder ticket limit exceeded"})
	case errors.Is(err, reservation.ErrTemporarilyUnavailable):
		c.Header("Retry-After", "2")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "not enough tickets available"})
	case errors.Is(err, reservation.ErrReservationExpired):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "reservation expired"})
	// finalizer service
	case errors.Is(err, finalizer.ErrPaidReservationLost):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "paid reservation lost"})
	case errors.Is(err, finalizer.ErrCompetitionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "competition not found"})
	case errors.Is(err, finalizer.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
	// query service
	case errors.Is(err, query.ErrCompetitionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "competition not found"})
	// admin service
	case errors.Is(err, admin.ErrInvalidPoolSize):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "total tickets must be positive"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
