package errors

// 에러 코드 상수 정의
// 형식: CATEGORY_SPECIFIC_DETAIL
// 프론트엔드에서 이 코드를 기반으로 메시지를 매핑함

const (
	// ==================== 인증 (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"        // 로그인 필요
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS" // 잘못된 이메일/비밀번호
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"       // 세션 만료 (백엔드 401)
	AuthMissingToken       = "AUTH_MISSING_TOKEN"       // 로그인 응답에 토큰 없음

	// ==================== 검증 (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT" // 잘못된 입력
	ValidationInvalidID    = "VALIDATION_INVALID_ID"    // 잘못된 ID

	// ==================== 리소스 (RESOURCE_) ====================
	ResourceNotFound = "RESOURCE_NOT_FOUND" // 리소스 없음
	ResourceConflict = "RESOURCE_CONFLICT"  // 충돌

	// ==================== 장바구니 (CART_) ====================
	CartItemNotFound     = "CART_ITEM_NOT_FOUND"     // 장바구니에 없는 항목
	CartOperationFailed  = "CART_OPERATION_FAILED"   // 백엔드 장바구니 호출 실패
	CartUnexpectedFormat = "CART_UNEXPECTED_FORMAT"  // 응답 형식 오류

	// ==================== 결제 (PAYMENT_) ====================
	PaymentSecurityDataMissing = "PAYMENT_SECURITY_DATA_MISSING" // 게이트웨이 보안 데이터 누락
	PaymentInProgress          = "PAYMENT_IN_PROGRESS"           // 결제 준비 중복 요청
	PaymentInitFailed          = "PAYMENT_INIT_FAILED"           // 결제 초기화 실패

	// ==================== 주문 (ORDER_) ====================
	OrderNotFound = "ORDER_NOT_FOUND" // 주문 없음

	// ==================== 내부 오류 (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"   // 서버 오류
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR" // DB 오류
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"   // 백엔드 API 오류
	InternalNetworkError  = "INTERNAL_NETWORK_ERROR"  // 백엔드 연결 실패
)
