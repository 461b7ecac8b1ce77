package errors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ikkim/storefront/internal/auth"
	"github.com/ikkim/storefront/internal/cart"
	"github.com/ikkim/storefront/internal/catalog"
	"github.com/ikkim/storefront/internal/orders"
	"github.com/ikkim/storefront/internal/payment"
	"github.com/ikkim/storefront/pkg/apiclient"
	"gorm.io/gorm"
)

// ErrorInfo 에러 정보 구조
type ErrorInfo struct {
	Code    string // 에러 코드 (codes.go 참조)
	Message string // 사용자에게 보여줄 메시지
	Status  int    // HTTP 상태 코드
}

// ParseError 모듈 에러를 코드, 메시지, 상태로 변환한다.
// 백엔드가 보낸 메시지가 있으면 그대로 전달한다.
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: defaultMessage(context),
			Status:  http.StatusInternalServerError,
		}
	}

	// 1. 인증
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return ErrorInfo{Code: AuthInvalidCredentials, Message: apiclient.MessageOf(err, "Invalid email or password"), Status: http.StatusUnauthorized}
	case errors.Is(err, cart.ErrNotAuthenticated):
		return ErrorInfo{Code: AuthUnauthorized, Message: "Please log in to manage your cart", Status: http.StatusUnauthorized}
	case errors.Is(err, auth.ErrNotAuthenticated):
		return ErrorInfo{Code: AuthUnauthorized, Message: "Please log in to continue", Status: http.StatusUnauthorized}
	case errors.Is(err, cart.ErrSessionExpired), errors.Is(err, apiclient.ErrUnauthorized):
		return ErrorInfo{Code: AuthTokenExpired, Message: "Your session has expired, please log in again", Status: http.StatusUnauthorized}
	case errors.Is(err, auth.ErrMissingToken):
		return ErrorInfo{Code: AuthMissingToken, Message: "Login failed, please try again", Status: http.StatusBadGateway}
	}

	// 2. 입력 검증
	switch {
	case errors.Is(err, payment.ErrInvalidOrderID):
		return ErrorInfo{Code: ValidationInvalidID, Message: "Order id is required", Status: http.StatusBadRequest}
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, cart.ErrInvalidItem):
		return ErrorInfo{Code: ValidationInvalidInput, Message: err.Error(), Status: http.StatusBadRequest}
	}

	// 3. 도메인 에러
	switch {
	case errors.Is(err, cart.ErrItemNotFound):
		return ErrorInfo{Code: CartItemNotFound, Message: "Item not found in cart", Status: http.StatusNotFound}
	case errors.Is(err, orders.ErrOrderNotFound):
		return ErrorInfo{Code: OrderNotFound, Message: "Order not found", Status: http.StatusNotFound}
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrorInfo{Code: ResourceNotFound, Message: notFoundMessage(context), Status: http.StatusNotFound}
	case errors.Is(err, payment.ErrPaymentInProgress):
		return ErrorInfo{Code: PaymentInProgress, Message: "Payment is already being prepared", Status: http.StatusConflict}
	case errors.Is(err, payment.ErrSecurityDataMissing):
		return ErrorInfo{Code: PaymentSecurityDataMissing, Message: "Payment security data missing. Please try again.", Status: http.StatusBadGateway}
	}

	var opErr *cart.OperationError
	if errors.As(err, &opErr) {
		info := fromBackend(err, context)
		info.Code = CartOperationFailed
		if opErr.Message == "" && apiclient.StatusOf(err) == 0 && !errors.Is(err, apiclient.ErrNetworkError) {
			info.Code = CartUnexpectedFormat
			info.Status = http.StatusBadGateway
		}
		info.Message = opErr.Error()
		return info
	}

	// 4. 백엔드 응답
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		info := fromBackend(err, context)
		if strings.Contains(strings.ToLower(context), "payment") && info.Code == InternalExternalAPI {
			info.Code = PaymentInitFailed
		}
		return info
	}

	// 5. 기본 내부 서버 오류
	return ErrorInfo{
		Code:    InternalServerError,
		Message: defaultMessage(context),
		Status:  http.StatusInternalServerError,
	}
}

// fromBackend 백엔드 에러 분류를 응답 상태로 옮긴다.
func fromBackend(err error, context string) ErrorInfo {
	status := apiclient.StatusOf(err)
	switch {
	case errors.Is(err, apiclient.ErrNetworkError):
		return ErrorInfo{
			Code:    InternalNetworkError,
			Message: "Unable to reach the store. Please check your connection and try again",
			Status:  http.StatusServiceUnavailable,
		}
	case errors.Is(err, apiclient.ErrServerError):
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: apiclient.MessageOf(err, defaultMessage(context)),
			Status:  http.StatusBadGateway,
		}
	case status == http.StatusNotFound:
		return ErrorInfo{Code: ResourceNotFound, Message: apiclient.MessageOf(err, notFoundMessage(context)), Status: status}
	case status == http.StatusConflict:
		return ErrorInfo{Code: ResourceConflict, Message: apiclient.MessageOf(err, "Request conflicts with current state"), Status: status}
	case status >= 400 && status < 500:
		return ErrorInfo{Code: ValidationInvalidInput, Message: apiclient.MessageOf(err, "Request was rejected"), Status: status}
	}
	return ErrorInfo{
		Code:    InternalExternalAPI,
		Message: defaultMessage(context),
		Status:  http.StatusBadGateway,
	}
}

// notFoundMessage context에 따른 Not Found 메시지
func notFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "product"):
		return "Product not found"
	case strings.Contains(contextLower, "blog"):
		return "Blog post not found"
	case strings.Contains(contextLower, "order"):
		return "Order not found"
	case strings.Contains(contextLower, "cart"):
		return "Cart not found"
	}
	return "The requested resource was not found"
}

// defaultMessage context에 따른 기본 에러 메시지
func defaultMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "cart"):
		return "Failed to update cart. Please try again"
	case strings.Contains(contextLower, "payment"):
		return "Failed to initialize payment. Please try again"
	case strings.Contains(contextLower, "login"), strings.Contains(contextLower, "register"):
		return "Authentication failed. Please try again"
	}
	return "Something went wrong. Please try again later"
}
