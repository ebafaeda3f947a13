package capture

import (
	"context"
	"fmt"
	"sync"
)

// MockPlatform はテスト用のPlatform実装
type MockPlatform struct {
	mu        sync.Mutex
	supported bool
	failure   error
	gate      chan struct{} // nilでなければ要求はReleaseまで待機する
	requests  int
	streams   []*MockStream
	panicMsg  string
}

// NewMockPlatform は即座に成功するMockPlatformを作成する
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{supported: true}
}

// IsSupported は取得機能の有無を返す
func (p *MockPlatform) IsSupported() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.supported
}

// RequestCapture はモックのストリームを返す
func (p *MockPlatform) RequestCapture(ctx context.Context, constraints Constraints) (StreamHandle, error) {
	p.mu.Lock()
	p.requests++
	n := p.requests
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, NewPlatformError("AbortError", "要求が中断されました", ctx.Err())
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.failure != nil {
		return nil, p.failure
	}

	stream := NewMockStream(fmt.Sprintf("mock-stream-%d", n), constraints)
	p.streams = append(p.streams, stream)
	return stream, nil
}

// SetSupported は取得機能の有無を設定する
func (p *MockPlatform) SetSupported(supported bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supported = supported
}

// SetFailure は以降の要求を失敗させる。nilで成功に戻す
func (p *MockPlatform) SetFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failure = err
}

// SetPanic は以降の要求でパニックさせる
func (p *MockPlatform) SetPanic(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panicMsg = msg
}

// SetBlocking は要求をReleaseまで待機させる
func (p *MockPlatform) SetBlocking(blocking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if blocking {
		p.gate = make(chan struct{}, 16)
	} else {
		p.gate = nil
	}
}

// Release は待機中の要求を1つ進める
func (p *MockPlatform) Release() {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		gate <- struct{}{}
	}
}

// Requests は要求回数を返す
func (p *MockPlatform) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

// Streams は返したストリームを返す
func (p *MockPlatform) Streams() []*MockStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MockStream(nil), p.streams...)
}

// MockPermissionPlatform は権限の問い合わせにも対応するMockPlatform
type MockPermissionPlatform struct {
	*MockPlatform

	permMu     sync.Mutex
	permission PermissionStatus
	queryErr   error
	watchers   map[int]func(PermissionStatus)
	nextWatch  int
}

// NewMockPermissionPlatform は新しいMockPermissionPlatformを作成する
func NewMockPermissionPlatform(status PermissionStatus) *MockPermissionPlatform {
	return &MockPermissionPlatform{
		MockPlatform: NewMockPlatform(),
		permission:   status,
		watchers:     make(map[int]func(PermissionStatus)),
	}
}

// QueryPermission は現在の権限状態を返す
func (p *MockPermissionPlatform) QueryPermission(_ context.Context) (PermissionStatus, error) {
	p.permMu.Lock()
	defer p.permMu.Unlock()
	if p.queryErr != nil {
		return PermissionUnknown, p.queryErr
	}
	return p.permission, nil
}

// WatchPermission は権限状態の変化を通知する
func (p *MockPermissionPlatform) WatchPermission(_ context.Context, onChange func(PermissionStatus)) (func(), error) {
	p.permMu.Lock()
	defer p.permMu.Unlock()
	id := p.nextWatch
	p.nextWatch++
	p.watchers[id] = onChange
	return func() {
		p.permMu.Lock()
		defer p.permMu.Unlock()
		delete(p.watchers, id)
	}, nil
}

// SetPermission は権限状態を変更し、監視者へ通知する
func (p *MockPermissionPlatform) SetPermission(status PermissionStatus) {
	p.permMu.Lock()
	p.permission = status
	watchers := make([]func(PermissionStatus), 0, len(p.watchers))
	for _, w := range p.watchers {
		watchers = append(watchers, w)
	}
	p.permMu.Unlock()

	for _, w := range watchers {
		w(status)
	}
}

// SetQueryError は問い合わせを失敗させる
func (p *MockPermissionPlatform) SetQueryError(err error) {
	p.permMu.Lock()
	defer p.permMu.Unlock()
	p.queryErr = err
}

// WatcherCount は監視者の数を返す
func (p *MockPermissionPlatform) WatcherCount() int {
	p.permMu.Lock()
	defer p.permMu.Unlock()
	return len(p.watchers)
}

// MockStream はテスト用のStreamHandle実装
type MockStream struct {
	id          string
	constraints Constraints

	mu        sync.Mutex
	tracks    []*MockTrack
	stopCalls int
}

// NewMockStream はビデオトラックを1本持つMockStreamを作成する
func NewMockStream(id string, constraints Constraints) *MockStream {
	return &MockStream{
		id:          id,
		constraints: constraints,
		tracks:      []*MockTrack{NewMockTrack(id + "-video")},
	}
}

// ID はストリームIDを返す
func (s *MockStream) ID() string {
	return s.id
}

// Constraints は要求時の制約を返す
func (s *MockStream) Constraints() Constraints {
	return s.constraints
}

// Tracks は停止していないトラックを返す
func (s *MockStream) Tracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracks := make([]Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if !t.Stopped() {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

// StopAll は全トラックを停止する
func (s *MockStream) StopAll() {
	s.mu.Lock()
	s.stopCalls++
	tracks := append([]*MockTrack(nil), s.tracks...)
	s.mu.Unlock()

	for _, t := range tracks {
		t.Stop()
	}
}

// StopCalls はStopAllの呼び出し回数を返す
func (s *MockStream) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// VideoTrack は最初のトラックを返す
func (s *MockStream) VideoTrack() *MockTrack {
	return s.tracks[0]
}

// MockTrack はテスト用のTrack実装
type MockTrack struct {
	id string

	mu          sync.Mutex
	stopped     bool
	subscribers map[int]chan []byte
	nextSub     int
}

// NewMockTrack は新しいMockTrackを作成する
func NewMockTrack(id string) *MockTrack {
	return &MockTrack{id: id, subscribers: make(map[int]chan []byte)}
}

// ID はトラックIDを返す
func (t *MockTrack) ID() string { return t.id }

// Kind はトラック種別を返す
func (t *MockTrack) Kind() string { return "video" }

// Label は表示名を返す
func (t *MockTrack) Label() string { return "Mock Camera" }

// Stop はトラックを停止し、購読を終了する
func (t *MockTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	for id, ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, id)
	}
}

// Stopped は停止済みかを返す
func (t *MockTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Subscribe はフレームを購読する
func (t *MockTrack) Subscribe() (<-chan []byte, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan []byte, 4)
	if t.stopped {
		close(ch)
		return ch, func() {}
	}
	id := t.nextSub
	t.nextSub++
	t.subscribers[id] = ch

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subscribers[id]; ok {
			close(c)
			delete(t.subscribers, id)
		}
	}
}

// Push は購読者へフレームを送る。バッファが満杯の購読者には送らない
func (t *MockTrack) Push(frame []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subscribers {
		select {
		case ch <- frame:
		default:
		}
	}
}

// MockSurface はテスト用のSurface実装
type MockSurface struct {
	id string

	mu          sync.Mutex
	attachments int
	detaches    int
	plays       int
	stream      StreamHandle
	playErr     error
	attachErr   error
}

// NewMockSurface は新しいMockSurfaceを作成する
func NewMockSurface(id string) *MockSurface {
	return &MockSurface{id: id}
}

// ID はサーフェスIDを返す
func (s *MockSurface) ID() string { return s.id }

// Attach はストリームを結合する
func (s *MockSurface) Attach(stream StreamHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachErr != nil {
		return s.attachErr
	}
	s.attachments++
	s.stream = stream
	return nil
}

// Detach は結合を解除する
func (s *MockSurface) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detaches++
	s.stream = nil
}

// Play は再生を要求する
func (s *MockSurface) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	return s.playErr
}

// SetPlayError は再生を失敗させる
func (s *MockSurface) SetPlayError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playErr = err
}

// SetAttachError は結合を失敗させる
func (s *MockSurface) SetAttachError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachErr = err
}

// Attachments は結合回数を返す
func (s *MockSurface) Attachments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachments
}

// Detaches は解除回数を返す
func (s *MockSurface) Detaches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detaches
}

// Plays は再生要求の回数を返す
func (s *MockSurface) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

// Stream は結合中のストリームを返す
func (s *MockSurface) Stream() StreamHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}
