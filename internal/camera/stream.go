package camera

import (
	"sync"

	"signbridge/internal/capture"
)

// deviceStream は1回の取得で得たトラックの集合
type deviceStream struct {
	id     string
	tracks []*videoTrack
}

// ID はストリームIDを返す
func (s *deviceStream) ID() string {
	return s.id
}

// Tracks は停止していないトラックを返す
func (s *deviceStream) Tracks() []capture.Track {
	tracks := make([]capture.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if !t.Stopped() {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

// StopAll は全トラックを停止する
func (s *deviceStream) StopAll() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

// videoTrack はffmpegプロセス1つに対応する映像トラック
type videoTrack struct {
	id     string
	label  string
	device string

	// halt はffmpegを停止し、配信ゴルーチンの終了を待つ
	halt func()
	// release はデバイスを返却する
	release  func()
	stopOnce sync.Once
	endOnce  sync.Once

	mu          sync.Mutex
	stopped     bool
	subscribers map[int]chan []byte
	nextSub     int
	latest      []byte
}

func newVideoTrack(id, label, device string) *videoTrack {
	return &videoTrack{
		id:          id,
		label:       label,
		device:      device,
		subscribers: make(map[int]chan []byte),
	}
}

// ID はトラックIDを返す
func (t *videoTrack) ID() string { return t.id }

// Kind はトラック種別を返す
func (t *videoTrack) Kind() string { return "video" }

// Label はカメラ名を返す
func (t *videoTrack) Label() string { return t.label }

// Device はデバイスパスを返す
func (t *videoTrack) Device() string { return t.device }

// Stop はトラックを停止する。複数回呼んでも解放は1回だけ行う
func (t *videoTrack) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		halt := t.halt
		t.mu.Unlock()

		// ffmpegが終わってからデバイスを返す
		if halt != nil {
			halt()
		}
		t.end()
	})
}

// end はトラックを終了状態にし、購読者を閉じてデバイスを返却する
// ffmpegが自ら終了した場合は配信ゴルーチンから呼ばれるため、終了を待たない
func (t *videoTrack) end() {
	t.endOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		for id, ch := range t.subscribers {
			close(ch)
			delete(t.subscribers, id)
		}
		release := t.release
		t.mu.Unlock()

		if release != nil {
			release()
		}
	})
}

// Stopped は停止済みかを返す
func (t *videoTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Subscribe はフレームを購読する。停止後は閉じたチャンネルを返す
func (t *videoTrack) Subscribe() (<-chan []byte, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan []byte, 2)
	if t.stopped {
		close(ch)
		return ch, func() {}
	}

	// 最新フレームがあれば即座に表示できるようにする
	if t.latest != nil {
		ch <- t.latest
	}

	id := t.nextSub
	t.nextSub++
	t.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subscribers[id]; ok {
				close(c)
				delete(t.subscribers, id)
			}
		})
	}
}

// publish はフレームを購読者へ配る。遅い購読者は古いフレームを捨てる
func (t *videoTrack) publish(frame []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.latest = frame

	for _, ch := range t.subscribers {
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}
