package purchase

import "errors"

var (
	// ErrIntentNotFound 購入意図が見つからないエラー
	ErrIntentNotFound = errors.New("purchase intent not found")
	// ErrInvalidStateTransition 不正な状態遷移エラー
	ErrInvalidStateTransition = errors.New("invalid purchase flow state transition")
	// ErrInvalidCorrelationID 相関IDが無効
	ErrInvalidCorrelationID = errors.New("invalid correlation id")
	// ErrInvalidUserID ユーザーIDが無効
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrInvalidIntentKind 購入種別が無効
	ErrInvalidIntentKind = errors.New("invalid intent kind")
	// ErrInvalidTarget 購入対象が無効
	ErrInvalidTarget = errors.New("invalid purchase target")
	// ErrIntentAlreadyCompleted 既に完了済みの購入意図
	ErrIntentAlreadyCompleted = errors.New("purchase intent already completed")
)
