package bus

import (
	"sync"
)

// Topic 通知トピック
type Topic string

const (
	// TopicSubscriptionUpdated サブスクリプションの状態が変わった
	TopicSubscriptionUpdated Topic = "subscription_updated"
	// TopicTokensPurchased トークン購入の照合が終了した（成功・タイムアウトを問わない）
	TopicTokensPurchased Topic = "tokens_purchased"
	// TopicTokenBalanceUpdated 残高が変わった可能性がある
	TopicTokenBalanceUpdated Topic = "token_balance_updated"
)

// Event 通知イベント
type Event struct {
	Topic      Topic
	UserID     string
	Balance    int64
	TokensUsed int64
}

// Bus プロセス内通知バス
// 関心のある画面・コンポーネントが購読し、通知を受けて自身の残高ビューを再取得する
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Event
}

// New 新しいBusを作成
func New() *Bus {
	return &Bus{
		subs: make(map[Topic][]chan Event),
	}
}

// Subscribe トピックを購読する
// 返されるチャネルはバッファ付きであり、購読者が追いつかない場合は通知が破棄される
// （通知は「残高が変わったかもしれない」という合図であり、損失しても次の通知で回復する）
func (b *Bus) Subscribe(topic Topic) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		channels := b.subs[topic]
		for i, c := range channels {
			if c == ch {
				b.subs[topic] = append(channels[:i], channels[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Publish トピックにイベントを配信する（ブロックしない）
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.Topic] {
		select {
		case ch <- event:
		default:
			// 購読者が追いついていない場合は破棄
		}
	}
}
