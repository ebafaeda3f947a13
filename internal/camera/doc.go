// Package camera Linux (V4L2) 上のカメラ取得機能を提供する
//
// # 責務
// - カメラデバイスの検出 (/dev/video*)
// - デバイスノードの権限確認と変化の監視
// - 物理デバイスの排他的な貸し出し
// - ffmpeg経由でのMJPEGストリーミング
//
// # 仕様
//   - Platform は capture.Platform と capture.PermissionSource を実装する
//   - 取得失敗は errno からブラウザ互換の分類名を持つ capture.PlatformError に変換する
//   - 1つの物理デバイスを同時に保持できるストリームは1つだけ
//   - トラックの停止は冪等で、停止時にffmpegプロセスとデバイスの貸し出しを解放する
//
// # 前提要件
//   - v4l-utils: カメラ名の取得に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: 画像キャプチャとストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
