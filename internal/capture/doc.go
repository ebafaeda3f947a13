// Package capture カメラのキャプチャセッションのライフサイクルを管理する
//
// # 責務
// - カメラ権限状態の受動的な監視 (PermissionTracker)
// - デバイス取得失敗の分類 (Classify)
// - セッションの状態機械 (Controller)
// - ストリームと描画先サーフェスの結合 (StreamBinder)
//
// # 仕様
//   - 状態: idle → requesting → active → stopped → idle、requesting → error → idle
//   - 取得要求は呼び出し元のキャンセルに影響されず最後まで実行される
//   - 放棄された要求の結果は破棄し、ストリームは即座に解放する
//   - 1回の start→stop サイクルにつきデバイスの取得と解放はちょうど1回
//   - 取得失敗は状態 (error) に変換され、呼び出し元へは返さない
//
// # 使い分け
// プラットフォーム (V4L2 等) は Platform を実装して Controller に渡す。
// 権限の問い合わせに対応するプラットフォームは PermissionSource も実装する。
package capture
