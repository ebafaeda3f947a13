package capture

// Dialog はユーザーに提示する説明ダイアログ
type Dialog struct {
	Kind         ErrorKind `json:"kind,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Instructions []string  `json:"instructions"`
	Retryable    bool      `json:"retryable"`
	// Confirm は権限要求前の説明ダイアログで、承諾するとstartする
	Confirm bool `json:"confirm"`
}

var errorDialogs = map[ErrorKind]Dialog{
	ErrorKindPermissionDenied: {
		Title:       "Camera Permission Denied",
		Description: "To use this feature, you need to grant camera access.",
		Instructions: []string{
			"Grant this service access to the camera device (for example, add the service user to the video group)",
			"Check that no policy blocks access to the camera",
			"Try again",
		},
	},
	ErrorKindNoDeviceFound: {
		Title:       "No Camera Found",
		Description: "No camera device was detected on your system.",
		Instructions: []string{
			"Make sure your camera is properly connected",
			"Check that the device appears as /dev/video*",
			"Reconnect the camera and reload",
		},
	},
	ErrorKindDeviceInUse: {
		Title:       "Camera Already in Use",
		Description: "Your camera is being used by another application.",
		Instructions: []string{
			"Close other applications that might be using the camera",
			"Make sure no other page is using the camera",
			"Try again after closing those applications",
		},
	},
	ErrorKindUnsupportedEnvironment: {
		Title:       "Camera Not Supported",
		Description: "Camera capture is not available in this environment.",
		Instructions: []string{
			"Install ffmpeg and v4l-utils",
			"Run the service on a host with video4linux support",
		},
	},
	ErrorKindUnknown: {
		Title:       "Camera Error",
		Description: "An unexpected error occurred while accessing the camera.",
		Instructions: []string{
			"Reconnect the camera",
			"Try again",
		},
	},
}

// permissionDialog は権限要求前に表示する説明
var permissionDialog = Dialog{
	Title:       "Camera Access Required",
	Description: "This feature needs access to your camera to recognize sign language gestures in real-time.",
	Instructions: []string{
		"Click \"Grant Access\" below",
		"The camera will be requested",
		"Allow access if you are asked",
	},
	Confirm: true,
}

// DialogFor はエラー種別に対応するダイアログを返す
func DialogFor(kind ErrorKind) (Dialog, bool) {
	d, ok := errorDialogs[kind]
	if !ok {
		return Dialog{}, false
	}
	d.Kind = kind
	d.Retryable = kind.Retryable()
	d.Instructions = append([]string(nil), d.Instructions...)
	return d, true
}

// PermissionDialog は権限要求前の説明ダイアログを返す
// 既に許可済みの場合は表示しない
func PermissionDialog(status PermissionStatus) (Dialog, bool) {
	if status == PermissionGranted {
		return Dialog{}, false
	}
	d := permissionDialog
	d.Instructions = append([]string(nil), d.Instructions...)
	return d, true
}

// DialogForSnapshot は状態に応じて表示すべきダイアログを返す
func DialogForSnapshot(s Snapshot, permission PermissionStatus) (Dialog, bool) {
	switch s.State {
	case StateError:
		return DialogFor(s.ErrorKind)
	case StateIdle:
		return PermissionDialog(permission)
	default:
		return Dialog{}, false
	}
}
