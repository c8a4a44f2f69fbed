package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestID 取得請求 ID，缺少時生成一個並寫回響應標頭
func RequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = common.GenerateUUID()
		c.Header("X-Request-ID", requestID)
	}
	return requestID
}

// toCustomError 將引擎錯誤轉換為帶 HTTP 狀態的錯誤
func toCustomError(err error) *common.CustomError {
	var unitErr *units.UnitError
	var notFound *common.NotFoundError
	var custom *common.CustomError

	switch {
	case errors.As(err, &unitErr):
		if unitErr.Kind == units.ErrIncompatible {
			return common.ErrIncompatibleUnit.Wrap(err)
		}
		return common.NewError(common.ErrCodeUnprocessable, "invalid quantity or unit", http.StatusUnprocessableEntity, err)
	case common.IsValidationError(err):
		return common.ErrInvalidRequest.Wrap(err)
	case errors.As(err, &notFound):
		return common.ErrNotFound.Wrap(err)
	case errors.Is(err, domain.ErrInsufficientQuantity):
		return common.ErrInsufficientStock.Wrap(err)
	case errors.As(err, &custom):
		return custom
	}
	return common.ErrInternalError.Wrap(err)
}

// WriteError 依錯誤種類回傳對應的狀態碼與錯誤結構
func WriteError(c *gin.Context, err error) {
	ce := toCustomError(err)

	resp := common.ErrorResponse{Code: ce.Code, Message: ce.Message}
	if ce.Err != nil && ce.Status < http.StatusInternalServerError {
		resp.Details = ce.Err.Error()
	}
	if ce.Status >= http.StatusInternalServerError {
		common.LogError("請求處理失敗",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
		)
		if gin.Mode() == gin.DebugMode {
			resp.Details = err.Error()
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(ce.Status, resp)
}

// BadRequest 請求格式錯誤
func BadRequest(c *gin.Context, message string) {
	WriteError(c, common.NewValidationError(message))
}

// ParseAsOf 解析 as_of 查詢參數（RFC 3339 或日期），未提供時使用目前時間
func ParseAsOf(c *gin.Context, now time.Time) (time.Time, error) {
	raw := c.Query("as_of")
	if raw == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, common.NewValidationError("as_of must be RFC 3339 or YYYY-MM-DD")
}

// QueryFloat 解析選填的浮點數查詢參數
func QueryFloat(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, common.NewValidationError(name + " must be a number")
	}
	return &v, nil
}

// QueryBool 解析選填的布林查詢參數
func QueryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, common.NewValidationError(name + " must be true or false")
	}
	return v, nil
}

// QueryInt 解析選填的整數查詢參數
func QueryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError(name + " must be an integer")
	}
	return v, nil
}
