package server

import (
	"signbridge/internal/capture"
	"signbridge/internal/generated"
)

// 内部の状態を生成されたスキーマに変換する

func apiSnapshot(snapshot capture.Snapshot) generated.SessionSnapshot {
	return generated.SessionSnapshot{
		SessionId: optionalString(snapshot.SessionID),
		State:     generated.SessionState(snapshot.State),
		ErrorKind: apiErrorKind(snapshot.ErrorKind),
		Tracks:    snapshot.Tracks,
	}
}

func apiBinding(binding capture.Binding) generated.Binding {
	return generated.Binding{
		SurfaceId: optionalString(binding.SurfaceID),
		SessionId: optionalString(binding.SessionID),
		Attached:  binding.Attached,
	}
}

func apiDialog(dialog capture.Dialog) *generated.Dialog {
	return &generated.Dialog{
		Kind:         apiErrorKind(dialog.Kind),
		Title:        dialog.Title,
		Description:  dialog.Description,
		Instructions: append([]string{}, dialog.Instructions...),
		Retryable:    dialog.Retryable,
		Confirm:      dialog.Confirm,
	}
}

func apiPermission(status capture.PermissionStatus) generated.PermissionStatus {
	switch status {
	case capture.PermissionPrompt:
		return generated.PermissionStatusPrompt
	case capture.PermissionGranted:
		return generated.PermissionStatusGranted
	case capture.PermissionDenied:
		return generated.PermissionStatusDenied
	default:
		return generated.PermissionStatusUnknown
	}
}

// apiErrorKind はエラーなしの場合nilを返す
func apiErrorKind(kind capture.ErrorKind) *generated.ErrorKind {
	if kind == capture.ErrorKindNone {
		return nil
	}
	converted := generated.ErrorKind(kind)
	return &converted
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
