// Package store はクライアント側のセッション状態を保持するストアを提供する。
// 認証済みユーザー、トークンペア、収集済みエッグ、ユーザー設定を
// 単一のプロセス内コンテナで管理し、変更を購読者へ通知する。
package store

import (
	"sync"

	"github.com/hitoshi/eggsplore/internal/model"
)

// Snapshot はストアの完全な状態のコピーを表す。
// 購読者は常に変更適用後の完全なスナップショットを受け取る。
// 部分的な更新が観測されることはない。
type Snapshot struct {
	User    *model.User
	Session *model.Session
	Eggs    []model.Egg
	Prefs   model.Preferences
}

// PreferencesPatch はPreferencesの部分更新を表す。
// nilのフィールドは「変更しない」を意味する（浅いマージ）。
type PreferencesPatch struct {
	MusicEnabled *bool
	SFXEnabled   *bool
}

// Subscriber はストア変更の通知を受け取る関数。
// 各変更の完了後に、更新済みのスナップショットとともに呼び出される。
type Subscriber func(Snapshot)

// Store は認証・セッション・ゲーム状態のプロセス内コンテナ。
// すべての変更操作は排他的に実行され、途中状態が外部から
// 観測されることはない。変更操作は失敗しない。
type Store struct {
	mu          sync.RWMutex
	user        *model.User
	session     *model.Session
	eggs        []model.Egg
	prefs       model.Preferences
	subscribers map[int]Subscriber
	nextSubID   int
}

// New は既定状態のStoreを生成する。
// user=nil、session=nil、eggs=空、prefsは既定値。
func New() *Store {
	return &Store{
		prefs:       model.DefaultPreferences(),
		subscribers: make(map[int]Subscriber),
	}
}

// Subscribe は変更通知の購読を登録し、購読解除関数を返す。
// 解除関数は複数回呼んでも安全。
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// SetUser は現在のユーザーレコードを丸ごと置き換える。
// nilはサインアウト状態を意味する。
func (s *Store) SetUser(user *model.User) {
	s.mu.Lock()
	s.user = cloneUser(user)
	s.notifyLocked()
}

// SetSession はトークンペアを丸ごと置き換える。
func (s *Store) SetSession(session *model.Session) {
	s.mu.Lock()
	s.session = cloneSession(session)
	s.notifyLocked()
}

// SetXP は経験値を絶対値で設定する。
// ユーザーが未設定の場合はXPのみを持つシェルユーザーを構築する。
// 値の検証は行わない（呼び出し元の責務）。
func (s *Store) SetXP(xp int64) {
	s.mu.Lock()
	if s.user == nil {
		s.user = &model.User{}
	}
	s.user.XP = xp
	s.notifyLocked()
}

// AddXP は経験値に符号付きデルタを加算する。結果は0で下限クランプされる。
// ユーザーが未設定の場合はXPのみを持つシェルユーザーを構築する。
// この操作がエラーを返すことはない。
func (s *Store) AddXP(delta int64) {
	s.mu.Lock()
	if s.user == nil {
		s.user = &model.User{}
	}
	s.user.XP += delta
	if s.user.XP < 0 {
		s.user.XP = 0
	}
	s.notifyLocked()
}

// AddCoins はコインに符号付きデルタを加算する。結果は0で下限クランプされる。
func (s *Store) AddCoins(delta int64) {
	s.mu.Lock()
	if s.user == nil {
		s.user = &model.User{}
	}
	s.user.Coins += delta
	if s.user.Coins < 0 {
		s.user.Coins = 0
	}
	s.notifyLocked()
}

// AddEgg はエッグをリストの先頭に追加する（新しい順）。
func (s *Store) AddEgg(egg model.Egg) {
	s.mu.Lock()
	s.eggs = append([]model.Egg{egg}, s.eggs...)
	s.notifyLocked()
}

// SetEggs はエッグリストを丸ごと置き換える。
// サーバーとの再同期で使用する。与えられた順序をそのまま保持する。
func (s *Store) SetEggs(eggs []model.Egg) {
	s.mu.Lock()
	s.eggs = append([]model.Egg(nil), eggs...)
	s.notifyLocked()
}

// SetPrefs は指定されたフィールドのみを既存の設定へ浅くマージする。
// nilのフィールドは変更されない。
func (s *Store) SetPrefs(patch PreferencesPatch) {
	s.mu.Lock()
	if patch.MusicEnabled != nil {
		s.prefs.MusicEnabled = *patch.MusicEnabled
	}
	if patch.SFXEnabled != nil {
		s.prefs.SFXEnabled = *patch.SFXEnabled
	}
	s.notifyLocked()
}

// Clear はストアを既定状態へリセットする。
// user=nil、session=nil、eggs=空、prefsは既定値（音楽無効、効果音有効）。
func (s *Store) Clear() {
	s.mu.Lock()
	s.user = nil
	s.session = nil
	s.eggs = nil
	s.prefs = model.DefaultPreferences()
	s.notifyLocked()
}

// Snapshot は現在状態の完全なコピーを返す。
// 返り値への変更はストアへ影響しない。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// User は現在のユーザーのコピーを返す。未設定の場合はnil。
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// Session は現在のセッションのコピーを返す。未設定の場合はnil。
func (s *Store) Session() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSession(s.session)
}

// Eggs は現在のエッグリストのコピーを返す（新しい順）。
func (s *Store) Eggs() []model.Egg {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Egg(nil), s.eggs...)
}

// Prefs は現在のユーザー設定を返す。
func (s *Store) Prefs() model.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// notifyLocked はスナップショットを採取してロックを解放し、
// 全購読者へ同期的に通知する。書き込みロックを保持した状態で
// 呼び出すこと。購読者の呼び出しはロック外で行うため、
// 購読者からのゲッター呼び出しでデッドロックしない。
func (s *Store) notifyLocked() {
	snap := s.snapshotLocked()
	subs := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// snapshotLocked は現在状態のディープコピーを作る。ロック保持中に呼び出すこと。
func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		User:    cloneUser(s.user),
		Session: cloneSession(s.session),
		Eggs:    append([]model.Egg(nil), s.eggs...),
		Prefs:   s.prefs,
	}
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneSession(sess *model.Session) *model.Session {
	if sess == nil {
		return nil
	}
	c := *sess
	return &c
}
