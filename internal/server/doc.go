// Package server は、カメラセッションを操作するHTTPサーバーを提供します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - ページごとのカメラセッション (Controller と StreamBinder) の管理
//   - MJPEGストリームの配信 (接続中のビューアが描画先になる)
//   - Server-Sent Events による状態遷移の通知
//
// 仕様:
//   - ルーティングは gin を使用
//   - ページから離れると、そのページのセッションは破棄され、デバイスは解放される
//   - 複数クライアントの同時接続をサポート
package server
