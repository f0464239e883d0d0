package wallet

import (
	"sync"

	"genie-wallet/internal/domain/balance"
)

// Store ユーザー1人分の「信じている残高」を保持するストア
// アプリ全体で残高の唯一の更新点であり、UIが観測する唯一の真実である
// 残高をローカルで減算することはなく、常に権威あるサーバー応答で置き換える
//
// refreshの単一飛行ガードは世代カウンターで強化されている:
// 各フェッチは開始時点の世代を持ち、完了時により新しい書き込みが
// 適用されていた場合はその結果を破棄する（古い値での上書きを防ぐ）
type Store struct {
	mu          sync.Mutex
	value       balance.Balance
	snapshot    balance.Snapshot
	initialized bool
	refreshing  bool
	generation  uint64
	cacheValid  bool
}

// NewStore 新しいStoreを作成
func NewStore() *Store {
	return &Store{}
}

// Get 最後に知った残高を返す（I/Oは行わない）
func (s *Store) Get() balance.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Snapshot 最後に知った残高の内訳を返す
func (s *Store) Snapshot() balance.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Initialized 一度でも残高がロードされたかどうかを返す
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// InvalidateCache 次回のrefreshに上流キャッシュのバイパスを強制する
func (s *Store) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheValid = false
}

// BeginRefresh refreshの開始を試みる
// 既に別のrefreshが進行中の場合は開始せず、呼び出しは破棄される（no-op）
// 戻り値は (開始時点の世代, キャッシュをバイパスすべきか, 開始できたか)
func (s *Store) BeginRefresh(bypassCache bool) (uint64, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshing {
		return 0, false, false
	}
	s.refreshing = true
	bypass := bypassCache || !s.cacheValid
	return s.generation, bypass, true
}

// CompleteRefresh refreshの完了を適用する
// フェッチ開始後に新しい書き込みが適用されていた場合、結果は破棄される
// 戻り値は (現在の残高, 値が変化したか)
func (s *Store) CompleteRefresh(gen uint64, snap balance.Snapshot) (balance.Balance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing = false
	if s.generation != gen {
		// 古いフェッチの完了: 破棄
		return s.value, false
	}
	return s.applyLocked(snap)
}

// FailRefresh refreshの失敗を記録する
// 初期化済みの場合は値を保持し、一度もロードされていない場合は
// 0にフォールバックしてUIが表示可能な値を持てるようにする（fail open）
// 戻り値は (現在の残高, 値が確定したか=初回フォールバック)
func (s *Store) FailRefresh() (balance.Balance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing = false
	if s.initialized {
		return s.value, false
	}
	s.value = balance.NewBalance(0)
	s.initialized = true
	s.generation++
	return s.value, true
}

// SetAuthoritative 権威あるサーバー値で残高を即時に置き換える
// InsufficientTokens応答やクエリ成功応答から呼ばれる
// 世代が進むため、進行中のrefreshの完了は破棄される
func (s *Store) SetAuthoritative(v int64) (balance.Balance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot
	snap.Balance = balance.NewBalance(v)
	return s.applyLocked(snap)
}

// ApplySnapshot 権威あるスナップショットで残高を置き換える（照合ループから呼ばれる）
func (s *Store) ApplySnapshot(snap balance.Snapshot) (balance.Balance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(snap)
}

// applyLocked スナップショットを適用する（置き換えであり、マージはしない）
func (s *Store) applyLocked(snap balance.Snapshot) (balance.Balance, bool) {
	changed := !s.initialized || s.value != snap.Balance
	s.value = snap.Balance
	s.snapshot = snap
	s.initialized = true
	s.cacheValid = true
	s.generation++
	return s.value, changed
}
