package errors

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var loginPath atomic.Value

func init() {
	loginPath.Store("/login")
}

// SetLoginPath 401 응답에 실리는 로그인 경로를 설정한다.
func SetLoginPath(path string) {
	if path != "" {
		loginPath.Store(path)
	}
}

// LoginPath 현재 로그인 경로
func LoginPath() string {
	return loginPath.Load().(string)
}

// ErrorResponse 표준 에러 응답 구조
type ErrorResponse struct {
	Error    string `json:"error"`              // 에러 코드 (프론트엔드에서 매핑용)
	Message  string `json:"message"`            // 사용자에게 보여줄 메시지
	Redirect string `json:"redirect,omitempty"` // 401 일 때 로그인 경로
	RetryURL string `json:"retryUrl,omitempty"` // 결제 실패 시 재시도 경로
}

// RespondWithError 에러 응답 헬퍼
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	if statusCode == http.StatusUnauthorized {
		resp.Redirect = LoginPath()
	}
	c.JSON(statusCode, resp)
}

// Respond 에러를 파싱하여 응답 반환
func Respond(c *gin.Context, err error, context string) ErrorInfo {
	info := ParseError(err, context)
	RespondWithError(c, info.Status, info.Code, info.Message)
	return info
}

// RespondWithRetry 결제 실패처럼 재시도 경로를 함께 돌려준다.
func RespondWithRetry(c *gin.Context, err error, context, retryURL string) ErrorInfo {
	info := ParseError(err, context)
	resp := ErrorResponse{
		Error:    info.Code,
		Message:  info.Message,
		RetryURL: retryURL,
	}
	if info.Status == http.StatusUnauthorized {
		resp.Redirect = LoginPath()
	}
	c.JSON(info.Status, resp)
	return info
}

// 자주 사용하는 에러 응답 단축 함수들

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Please log in to continue"
	}
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Something went wrong. Please try again later"
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}

// ValidationError 검증 에러 (요청 바인딩 실패)
type ValidationError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func RespondWithValidationError(c *gin.Context, err error) {
	resp := ValidationError{
		Error:   ValidationInvalidInput,
		Message: "Invalid request data",
	}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}
