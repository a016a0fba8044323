package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssedge/ssedge/internal/config"
	"github.com/ssedge/ssedge/internal/model"
	"github.com/ssedge/ssedge/internal/service"
)

// deviceCmd 设备登记管理
func (c *cli) deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage registered devices",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME IP",
		Short: "Register a device without connecting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.app.Devices.AddDevice(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.render(d, deviceTable([]model.Device{*d}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := c.app.Devices.ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(devices, deviceTable(devices))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a device with its tunnels, metrics and command logs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n, err := c.app.Devices.DeleteDevice(cmd.Context(), id)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("device %d not found", id)
			}
			fmt.Fprintf(c.out, "deleted device %d\n", id)
			return nil
		},
	})
	return cmd
}

func (c *cli) connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect HOSTNAME IP",
		Short: "Open a verified SSH session and register the device on success",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Devices.ConnectAndRegister(cmd.Context(), args[0], args[1], c.sessionConfig(cmd))
			if err != nil {
				return explain(err)
			}
			if c.output != "table" {
				return c.render(res, nil)
			}
			fmt.Fprintln(c.out, res.Message)
			return c.render(res.Device, deviceTable([]model.Device{*res.Device}))
		},
	}
}

func (c *cli) testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test HOSTNAME IP",
		Short: "Check that an SSH session can be established; nothing is recorded",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := c.app.Devices.TestConnection(cmd.Context(), args[0], args[1], c.sessionConfig(cmd))
			if err != nil {
				return explain(err)
			}
			fmt.Fprintln(c.out, msg)
			return nil
		},
	}
}

// metricsCmd 按需采集；--device 时采集已登记设备并写入配置的去向
func (c *cli) metricsCmd() *cobra.Command {
	var deviceID int64
	cmd := &cobra.Command{
		Use:   "metrics [IP]",
		Short: "Fetch a one-shot resource snapshot from a host",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case deviceID > 0:
				m, err := c.app.Metrics.FetchDeviceMetrics(cmd.Context(), deviceID, c.sessionConfig(cmd))
				var sinkErr *service.SinkError
				if errors.As(err, &sinkErr) && m != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
					err = nil
				}
				if err != nil {
					return explain(err)
				}
				return c.render(m, metricsTable(fmt.Sprintf("device %d", deviceID), m))
			case len(args) == 1:
				m, err := c.app.Metrics.FetchMetrics(cmd.Context(), args[0], c.sessionConfig(cmd))
				if err != nil {
					return explain(err)
				}
				return c.render(m, metricsTable(args[0], m))
			default:
				return errors.New("an IP or --device is required")
			}
		},
	}
	cmd.Flags().Int64Var(&deviceID, "device", 0, "registered device id (records the snapshot to the configured sinks)")

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Fetch metrics from every registered device concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := c.app.Metrics.FetchAllMetrics(cmd.Context(), c.sessionConfig(cmd))
			if err != nil {
				return err
			}
			return c.render(results, fanOutTable(results))
		},
	})

	var limit int
	history := &cobra.Command{
		Use:   "history DEVICE_ID",
		Short: "Show stored metrics of a device, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			items, err := c.app.Metrics.History(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			return c.render(items, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tCPU\tMEM\tTIME")
				for _, m := range items {
					ts := m.Timestamp
					fmt.Fprintf(w, "%d\t%.2f%%\t%.2f%%\t%s\n", m.ID, m.CPU, m.Mem, formatEpoch(&ts))
				}
			})
		},
	}
	history.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.AddCommand(history)
	return cmd
}

func (c *cli) execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec DEVICE_ID COMMAND...",
		Short: "Run a command on a registered device and record it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := c.app.Commands.Run(cmd.Context(), id, strings.Join(args[1:], " "), c.sessionConfig(cmd))
			if err != nil {
				return explain(err)
			}
			if c.output != "table" {
				return c.render(res, nil)
			}
			fmt.Fprint(c.out, res.Stdout)
			fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
			if res.ExitCode != 0 {
				return fmt.Errorf("remote command exited with status %d", res.ExitCode)
			}
			return nil
		},
	}
}

func (c *cli) tunnelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tunnel",
		Short: "Track tunnel status records of devices",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add DEVICE_ID [up|down|unknown]",
		Short: "Add a tunnel record",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status := ""
			if len(args) == 2 {
				status = args[1]
			}
			t, err := c.app.Tunnels.Create(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			return c.render(t, tunnelTable([]model.Tunnel{*t}))
		},
	})

	var status string
	list := &cobra.Command{
		Use:   "list DEVICE_ID",
		Short: "List tunnel records of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			items, err := c.app.Tunnels.ListByDevice(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			return c.render(items, tunnelTable(items))
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "set TUNNEL_ID up|down|unknown",
		Short: "Update the status of a tunnel record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := c.app.Tunnels.UpdateStatus(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return c.render(t, tunnelTable([]model.Tunnel{*t}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete TUNNEL_ID",
		Short: "Delete a tunnel record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n, err := c.app.Tunnels.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("tunnel %d not found", id)
			}
			fmt.Fprintf(c.out, "deleted tunnel %d\n", id)
			return nil
		},
	})
	return cmd
}

// logPathCmd 输出日志文件的绝对路径
func (c *cli) logPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log-path",
		Short: "Print the absolute path of the log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(c.app.Config.Log.FilePath)
			if path == "" {
				return errors.New("log.file_path is not configured")
			}
			abs, err := filepath.Abs(config.ExpandHome(path))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, abs)
			return nil
		},
	}
}
