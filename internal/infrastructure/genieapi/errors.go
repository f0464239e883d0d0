package genieapi

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFailure ネットワーク到達性の障害
	ErrNetworkFailure = errors.New("network failure")
	// ErrNotAuthenticated 認証されていない
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidResponse レスポンスの解析に失敗
	ErrInvalidResponse = errors.New("invalid response")
)

// InsufficientTokensError 残高不足
// サーバーが裁定者であり、クライアント側の事前見積もりは行わない
// 失敗ではなく期待されるビジネス状態として扱われ、常にアップセルに変換される
type InsufficientTokensError struct {
	Required int64
	Balance  int64
}

// Error エラーメッセージを返す
func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("insufficient tokens: required=%d balance=%d", e.Required, e.Balance)
}

// ServerError サーバー側エラー
// 500は購入インテント作成時に「一時的に利用不可」として区別して表示される
type ServerError struct {
	Code int
}

// Error エラーメッセージを返す
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: code=%d", e.Code)
}

// InvalidRequestError リクエスト不正
type InvalidRequestError struct {
	Message string
}

// Error エラーメッセージを返す
func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Message)
}

// AsInsufficientTokens InsufficientTokensErrorへの変換を試みる
func AsInsufficientTokens(err error) (*InsufficientTokensError, bool) {
	var ite *InsufficientTokensError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

// AsServerError ServerErrorへの変換を試みる
func AsServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
