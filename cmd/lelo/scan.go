package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for LELO devices",
	Long: `Scan for Bluetooth Low Energy devices advertising the LELO control
service (FFF0) and print their names, addresses, signal strength and
advertised services, strongest signal first.`,
	Example: `  lelo scan
  lelo scan --duration 5s --format json
  lelo scan --all --block C4:7C:8D:6A:00:01`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAll       bool
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default: scan_timeout from config)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "text", "Output format (text, json)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Show every device, not only LELO ones")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd, cfg)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	opts := scanner.DefaultScanOptions()
	opts.Duration = cfg.ScanTimeout
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}
	if scanAll {
		opts.ServiceUUIDs = nil
	}
	opts.AllowList = scanAllowList
	opts.BlockList = scanBlockList

	ctx, stop := signalContext(cmd)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Scanning for %s...\n", opts.Duration)
	devices, err := scanner.NewScanner(logger).Scan(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return writeDevicesJSON(out, devices)
	}
	return writeDevicesTable(out, devices)
}

type deviceJSON struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	RSSI        int      `json:"rssi"`
	Connectable bool     `json:"connectable"`
	Services    []string `json:"services"`
}

func writeDevicesJSON(w io.Writer, devices []device.DeviceInfo) error {
	list := make([]deviceJSON, 0, len(devices))
	for _, d := range devices {
		services := d.AdvertisedServices()
		if services == nil {
			services = []string{}
		}
		list = append(list, deviceJSON{
			Name:        d.Name(),
			Address:     d.Address(),
			RSSI:        d.RSSI(),
			Connectable: d.IsConnectable(),
			Services:    services,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func writeDevicesTable(w io.Writer, devices []device.DeviceInfo) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No devices discovered")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tRSSI\tSERVICES")
	for _, d := range devices {
		name := d.Name()
		if name == "" {
			name = "(unknown)"
		} else if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%d dBm\t%s\n", name, d.Address(), d.RSSI(), strings.Join(d.AdvertisedServices(), ","))
	}
	return tw.Flush()
}
