package capture

import (
	"errors"
	"syscall"
)

// categoryKinds はプラットフォームの失敗分類名から種別への対応表
// メッセージ文字列はロケールやブラウザで変わるため分岐には使わない
// ここにない分類はunknownになる。unsupported_environmentは取得前のIsSupportedでのみ判定する
var categoryKinds = map[string]ErrorKind{
	"NotAllowedError":       ErrorKindPermissionDenied,
	"PermissionDeniedError": ErrorKindPermissionDenied,
	"NotFoundError":         ErrorKindNoDeviceFound,
	"DevicesNotFoundError":  ErrorKindNoDeviceFound,
	"NotReadableError":      ErrorKindDeviceInUse,
	"TrackStartError":       ErrorKindDeviceInUse,
}

// errnoKinds はカーネルのerrnoから種別への対応表
var errnoKinds = map[syscall.Errno]ErrorKind{
	syscall.EACCES: ErrorKindPermissionDenied,
	syscall.EPERM:  ErrorKindPermissionDenied,
	syscall.ENOENT: ErrorKindNoDeviceFound,
	syscall.ENODEV: ErrorKindNoDeviceFound,
	syscall.ENXIO:  ErrorKindNoDeviceFound,
	syscall.EBUSY:  ErrorKindDeviceInUse,
}

// Classify は取得失敗をErrorKindに分類する
// 未知の失敗はErrorKindUnknownとなり、この関数自体は失敗しない
func Classify(err error) (kind ErrorKind) {
	defer func() {
		if r := recover(); r != nil {
			kind = ErrorKindUnknown
		}
	}()

	if err == nil {
		return ErrorKindUnknown
	}

	var platformErr *PlatformError
	if errors.As(err, &platformErr) && platformErr != nil {
		if k, ok := categoryKinds[platformErr.Category]; ok {
			return k
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if k, ok := errnoKinds[errno]; ok {
			return k
		}
	}

	return ErrorKindUnknown
}

// Category は失敗の分類名を返す。分類名がなければ空文字
func Category(err error) string {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) && platformErr != nil {
		return platformErr.Category
	}
	return ""
}
