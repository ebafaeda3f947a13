package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"signbridge/internal/camera"
	"signbridge/internal/capture"
)

func newPermissionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "permission",
		Short: "カメラの権限状態を表示する",
		Long:  `デバイスノードの権限からカメラの権限状態を判定します。カメラは開きません。`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			watcher := camera.NewPermissionWatcher(a.cfg.Camera.DevDir, a.logger)
			status, err := watcher.QueryPermission(cmd.Context())
			if err != nil {
				return fmt.Errorf("権限状態の取得に失敗しました: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "permission: %s\n", status)
			if status != capture.PermissionDenied {
				return nil
			}
			if dialog, ok := capture.DialogFor(capture.ErrorKindPermissionDenied); ok {
				fmt.Fprintln(out, dialog.Description)
				for i, step := range dialog.Instructions {
					fmt.Fprintf(out, "  %d. %s\n", i+1, step)
				}
			}
			return nil
		},
	}
}
