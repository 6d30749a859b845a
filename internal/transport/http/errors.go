package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/richardliu001/wallet-ledger/internal/service"
)

const ctxErrorCode = "error_code"

var statusByCode = map[string]int{
	service.CodeInvalidAmount:     http.StatusBadRequest,
	service.CodeInvalidRequest:    http.StatusBadRequest,
	service.CodeSelfTransfer:      http.StatusBadRequest,
	service.CodeInsufficientFunds: http.StatusPaymentRequired,
	service.CodeRecipientNotFound: http.StatusNotFound,
	service.CodeUserNotFound:      http.StatusNotFound,
	service.CodeConflict:          http.StatusConflict,
	service.CodeLockTimeout:       http.StatusInternalServerError,
	service.CodePersistence:       http.StatusInternalServerError,
}

func writeError(c *gin.Context, err error) {
	code := service.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		// storage details stay in the logs
		msg = "persistence failure"
		_ = c.Error(err)
	}
	c.Set(ctxErrorCode, code)
	c.JSON(status, gin.H{"error": msg, "code": code, "retryable": service.Retryable(err)})
}

// bindError reports a malformed amount as INVALID_AMOUNT and every other
// binding problem as INVALID_REQUEST.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "money" {
				writeError(c, fmt.Errorf("%w: %q", service.ErrInvalidAmount, fe.Value()))
				return
			}
		}
	}
	writeError(c, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err))
}
