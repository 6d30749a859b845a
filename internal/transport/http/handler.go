package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/wallet-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// amount is a money value as sent by the client, either "12.50" or 12.50.
// It stays text until the money validator has accepted it.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	if string(b) == "null" {
		return nil
	}
	*a = amount(b)
	return nil
}

func (a amount) Decimal() decimal.Decimal { return decimal.RequireFromString(string(a)) }

func RegisterHandlers(r *gin.Engine, svc *service.WalletService) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := r.Group("/v1")
	{
		v1.POST("/accounts", openAccountHandler(svc))
		v1.GET("/profile", profileHandler(svc))
		v1.POST("/deposits", depositHandler(svc))
		v1.POST("/bill-payments", billPaymentHandler(svc))
		v1.POST("/transfers", transferHandler(svc))
		v1.GET("/transactions", transactionsHandler(svc))
	}
}

type openAccountReq struct {
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"required"`
	Mobile string `json:"mobile" binding:"required"`
}

func openAccountHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req openAccountReq
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		u, err := svc.OpenAccount(c.Request.Context(), req.Name, req.Email, req.Mobile)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": u})
	}
}

func profileHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.GetProfile(c.Request.Context(), c.Query("email_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

type depositReq struct {
	UserID         uint64 `json:"user_id" binding:"required"`
	Amount         amount `json:"amount" binding:"required,money"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=64"`
}

func depositHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req depositReq
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		bal, err := svc.Deposit(c.Request.Context(), req.UserID, req.Amount.Decimal(), req.IdempotencyKey)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"new_balance": bal.StringFixed(2)})
	}
}

type billPaymentReq struct {
	UserID         uint64 `json:"user_id" binding:"required"`
	MerchantID     string `json:"merchant_id" binding:"required,max=64"`
	Amount         amount `json:"amount" binding:"required,money"`
	Description    string `json:"description" binding:"max=255"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=64"`
}

func billPaymentHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billPaymentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		bal, err := svc.PayBill(c.Request.Context(), req.UserID, req.MerchantID, req.Amount.Decimal(), req.Description, req.IdempotencyKey)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"new_balance": bal.StringFixed(2)})
	}
}

type transferReq struct {
	SenderID            uint64 `json:"sender_id" binding:"required"`
	RecipientIdentifier string `json:"recipient_identifier" binding:"required"`
	Amount              amount `json:"amount" binding:"required,money"`
	IdempotencyKey      string `json:"idempotency_key" binding:"max=64"`
}

func transferHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transferReq
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		bal, err := svc.Transfer(c.Request.Context(), req.SenderID, req.RecipientIdentifier, req.Amount.Decimal(), req.IdempotencyKey)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"new_balance": bal.StringFixed(2)})
	}
}

func transactionsHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
		if err != nil || id == 0 {
			writeError(c, service.ErrInvalidRequest)
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
		if err != nil || limit < 0 {
			writeError(c, service.ErrInvalidRequest)
			return
		}
		txs, err := svc.ListTransactions(c.Request.Context(), id, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txs})
	}
}
