package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"signbridge/internal/camera"
)

func newDevicesCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "利用可能なカメラを一覧表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			discovery := a.discoverer()

			devices, err := discovery.ScanDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("デバイスのスキャンに失敗しました: %w", err)
			}

			infos := make([]*camera.DeviceInfo, 0, len(devices))
			for _, device := range devices {
				info, err := discovery.GetDeviceInfo(cmd.Context(), device)
				if err != nil {
					a.logger.Warn("デバイス情報の取得に失敗", "device", device, "error", err)
					info = &camera.DeviceInfo{Device: device, Name: device}
				}
				infos = append(infos, info)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			if len(infos) == 0 {
				fmt.Fprintln(out, "カメラが見つかりません")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DEVICE\tNAME\tDRIVER\tFORMATS")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", info.Device, info.Name, info.Driver, info.Formats)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON形式で出力する")
	return cmd
}
