package server

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"signbridge/internal/capture"
	"signbridge/internal/generated"
)

var (
	// ErrUnknownPage は設定されていないページを指定した場合のエラー
	ErrUnknownPage = errors.New("ページが見つかりません")

	// ErrRegistryClosed はシャットダウン後にページを要求した場合のエラー
	ErrRegistryClosed = errors.New("サーバーは停止しています")
)

// Page は1つの画面が所有するカメラセッション
type Page struct {
	name       string
	controller *capture.Controller
	binder     *capture.StreamBinder
	events     *hub
	done       chan struct{}

	mu          sync.Mutex
	playbackErr *generated.PlaybackError

	unsubscribe func()
	closeOnce   sync.Once
}

func newPage(name string, platform capture.Platform, tracker *capture.PermissionTracker, constraints capture.Constraints, logger *slog.Logger) *Page {
	logger = logger.With("page", name)

	p := &Page{
		name:   name,
		events: newHub(),
		done:   make(chan struct{}),
	}
	p.controller = capture.NewController(platform,
		capture.WithConstraints(constraints),
		capture.WithLogger(logger),
		capture.WithPermissionTracker(tracker),
	)
	p.binder = capture.NewStreamBinder(p.controller,
		capture.WithBinderLogger(logger),
		capture.WithPlaybackErrorHandler(p.handlePlaybackError),
	)
	p.unsubscribe = p.controller.OnChange(p.handleChange)

	return p
}

// Name はページ名を返す
func (p *Page) Name() string {
	return p.name
}

// Controller はページのセッションコントローラーを返す
func (p *Page) Controller() *capture.Controller {
	return p.controller
}

// Binder はページのストリーム結合を返す
func (p *Page) Binder() *capture.StreamBinder {
	return p.binder
}

// Done はページが破棄されると閉じる
func (p *Page) Done() <-chan struct{} {
	return p.done
}

// View は現在の状態を返す
func (p *Page) View(permission capture.PermissionStatus) generated.PageView {
	snapshot := p.controller.Snapshot()
	view := generated.PageView{
		Page:       p.name,
		Session:    apiSnapshot(snapshot),
		Binding:    apiBinding(p.binder.Binding()),
		Permission: apiPermission(permission),
	}
	if dialog, ok := capture.DialogForSnapshot(snapshot, permission); ok {
		view.Dialog = apiDialog(dialog)
	}

	p.mu.Lock()
	if p.playbackErr != nil {
		playbackErr := *p.playbackErr
		view.PlaybackError = &playbackErr
	}
	p.mu.Unlock()

	return view
}

func (p *Page) handleChange(change capture.Change) {
	// 新しい要求を始めたら前回の再生失敗は消す
	if change.State == capture.StateRequesting {
		p.mu.Lock()
		p.playbackErr = nil
		p.mu.Unlock()
	}
	p.events.publish(Event{Type: "state", Data: apiSnapshot(change.Snapshot)})
}

func (p *Page) handlePlaybackError(surfaceID string, kind capture.ErrorKind, err error) {
	playbackErr := &generated.PlaybackError{
		SurfaceId:  surfaceID,
		Kind:       generated.ErrorKind(kind),
		Message:    err.Error(),
		OccurredAt: time.Now(),
	}

	p.mu.Lock()
	p.playbackErr = playbackErr
	p.mu.Unlock()

	p.events.publish(Event{Type: "playback_error", Data: playbackErr})
}

// close はセッションを破棄し、デバイスを解放する
func (p *Page) close() {
	p.closeOnce.Do(func() {
		p.binder.Close()
		p.controller.Dispose()
		p.controller.Wait()
		p.unsubscribe()
		p.events.close()
		close(p.done)
	})
}

// Registry はページ名ごとにPageを管理する
// ページは最初にアクセスされた時点で作られ、Leaveで破棄される
type Registry struct {
	platform    capture.Platform
	tracker     *capture.PermissionTracker
	constraints capture.Constraints
	logger      *slog.Logger
	names       map[string]struct{}

	mu     sync.Mutex
	pages  map[string]*Page
	closed bool
}

// NewRegistry は新しいRegistryを作成する
func NewRegistry(names []string, platform capture.Platform, tracker *capture.PermissionTracker, constraints capture.Constraints, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(names))
	for _, name := range names {
		allowed[name] = struct{}{}
	}
	return &Registry{
		platform:    platform,
		tracker:     tracker,
		constraints: constraints,
		logger:      logger,
		names:       allowed,
		pages:       make(map[string]*Page),
	}
}

// Names は設定されたページ名を返す
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get はページを返す。まだなければ作成する
func (r *Registry) Get(name string) (*Page, error) {
	if _, ok := r.names[name]; !ok {
		return nil, ErrUnknownPage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if page, ok := r.pages[name]; ok {
		return page, nil
	}

	page := newPage(name, r.platform, r.tracker, r.constraints, r.logger)
	r.pages[name] = page
	r.logger.Info("ページを開きました", "page", name)
	return page, nil
}

// Lookup は作成済みのページを返す
func (r *Registry) Lookup(name string) (*Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page, ok := r.pages[name]
	return page, ok
}

// Leave はページを破棄する。作成されていなければfalseを返す
func (r *Registry) Leave(name string) bool {
	r.mu.Lock()
	page, ok := r.pages[name]
	delete(r.pages, name)
	r.mu.Unlock()

	if !ok {
		return false
	}
	page.close()
	r.logger.Info("ページから離れました", "page", name)
	return true
}

// Views は作成済みページの状態を返す
func (r *Registry) Views(permission capture.PermissionStatus) []generated.PageView {
	r.mu.Lock()
	pages := make([]*Page, 0, len(r.pages))
	for _, page := range r.pages {
		pages = append(pages, page)
	}
	r.mu.Unlock()

	sort.Slice(pages, func(i, j int) bool { return pages[i].name < pages[j].name })

	views := make([]generated.PageView, 0, len(pages))
	for _, page := range pages {
		views = append(views, page.View(permission))
	}
	return views
}

// Close は全ページを破棄する
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	pages := r.pages
	r.pages = make(map[string]*Page)
	r.mu.Unlock()

	for _, page := range pages {
		page.close()
	}
}
