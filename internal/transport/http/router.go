package http

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func NewRouter(svc *service.WalletService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("money", validMoney)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, svc)
	return r
}

// maxAmountLen covers numeric(20,2) written out in full, with sign.
const maxAmountLen = 24

// validMoney accepts a short string shopspring/decimal can parse; sign, scale
// and magnitude are the service's concern.
func validMoney(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) > maxAmountLen {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}
