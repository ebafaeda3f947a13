package server

import (
	"sync"

	"signbridge/internal/capture"
)

// mjpegSurface はMJPEGビューアの接続を描画先として扱う
// 結合されたストリームの映像トラックからフレームを購読する
type mjpegSurface struct {
	id string

	mu          sync.Mutex
	frames      <-chan []byte
	unsubscribe func()
	playing     bool
	changed     chan struct{}
}

func newMJPEGSurface(id string) *mjpegSurface {
	return &mjpegSurface{
		id:      id,
		changed: make(chan struct{}, 1),
	}
}

// ID はサーフェスIDを返す
func (s *mjpegSurface) ID() string {
	return s.id
}

// Attach はストリームの映像トラックを購読する
func (s *mjpegSurface) Attach(stream capture.StreamHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	for _, track := range stream.Tracks() {
		if track.Kind() != "video" {
			continue
		}
		if source, ok := track.(capture.FrameSource); ok {
			s.frames, s.unsubscribe = source.Subscribe()
			break
		}
	}
	s.notify()
	return nil
}

// Detach は購読を解除する
func (s *mjpegSurface) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	s.playing = false
	s.notify()
}

// Play は配信を開始する。フレームを取り出せるトラックがなければ失敗する
func (s *mjpegSurface) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames == nil {
		return capture.ErrPlaybackUnsupported
	}
	s.playing = true
	s.notify()
	return nil
}

// current は配信中のフレームチャンネルを返す。未結合ならnil
func (s *mjpegSurface) current() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return nil
	}
	return s.frames
}

// drop は閉じられたチャンネルを手放す
func (s *mjpegSurface) drop(frames <-chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames == frames {
		s.frames = nil
		s.unsubscribe = nil
		s.playing = false
	}
}

func (s *mjpegSurface) releaseLocked() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.frames = nil
	s.unsubscribe = nil
}

func (s *mjpegSurface) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
