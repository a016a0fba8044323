package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	gossh "golang.org/x/crypto/ssh"

	"github.com/ssedge/ssedge/internal/service"
	"github.com/ssedge/ssedge/pkg/logger"
	"github.com/ssedge/ssedge/pkg/ssh"
	"github.com/ssedge/ssedge/simulate"
)

// simtest 启动本地 SSH 模拟主机，可选地用真实连接器自检一次
func main() {
	var (
		configPath string
		probe      bool
	)

	cmd := &cobra.Command{
		Use:           "simtest",
		Short:         "Run the local SSH simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &simulate.Config{Listen: "127.0.0.1:2222"}
			if configPath != "" {
				loaded, err := simulate.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			sim, err := simulate.New(*cfg)
			if err != nil {
				return err
			}
			if err := sim.Start(); err != nil {
				return err
			}
			defer sim.Stop()

			fmt.Printf("simulator listening on %s\n", sim.Addr())
			fmt.Printf("known_hosts: %s\n", ssh.KnownHostsLine(sim.Addr(), sim.HostKey()))

			if probe {
				return runProbe(cmd.Context(), sim)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "simulate/simulate.yaml", "simulate.yaml path (empty for defaults)")
	cmd.Flags().BoolVar(&probe, "probe", false, "connect once with a throwaway key, fetch metrics and exit")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		logger.WithError(err).Error("simtest failed")
		os.Exit(1)
	}
}

// runProbe 生成临时客户端密钥，通过 known_hosts 严格校验后采集一次指标
func runProbe(ctx context.Context, sim *simulate.Server) error {
	dir, err := os.MkdirTemp("", "ssedge-simtest")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	keyPEM, err := simulate.GenerateKeyPEM()
	if err != nil {
		return err
	}
	keyPath := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return err
	}
	signer, err := gossh.ParsePrivateKey(keyPEM)
	if err != nil {
		return err
	}
	sim.Authorize(signer.PublicKey())

	knownHosts := filepath.Join(dir, "known_hosts")
	line := ssh.KnownHostsLine(sim.Addr(), sim.HostKey()) + "\n"
	if err := os.WriteFile(knownHosts, []byte(line), 0o600); err != nil {
		return err
	}

	connector := service.NewSSHConnector(ssh.NewConnector(ssh.TransportConfig{
		KnownHostsPath: knownHosts,
		IdentityFiles:  []string{keyPath},
	}))
	port := sim.Port()
	timeout := uint64(5)
	svc := service.NewMetricsService(nil, connector, 1)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	m, err := svc.FetchMetrics(ctx, "127.0.0.1", ssh.SessionConfig{Port: &port, ConnectTimeout: &timeout})
	if err != nil {
		return err
	}
	fmt.Printf("cpu=%.2f%% mem=%.2f%% disk=%.2f%% uptime=%ds load=%s\n",
		m.CPUUsage, m.MemoryPercent, m.DiskPercent, m.UptimeSeconds, m.LoadAverage)
	return nil
}
