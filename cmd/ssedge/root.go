package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssedge/ssedge/api/handler"
	"github.com/ssedge/ssedge/internal/app"
	"github.com/ssedge/ssedge/internal/config"
	"github.com/ssedge/ssedge/pkg/logger"
	"github.com/ssedge/ssedge/pkg/ssh"
)

// cli 命令行共享状态
type cli struct {
	configPath string
	output     string
	verbose    bool
	session    sessionFlags

	app *app.App
	out io.Writer
}

// sessionFlags 会话参数；只有显式给出的标志才会覆盖默认值
type sessionFlags struct {
	user    string
	port    uint16
	strict  bool
	timeout uint64
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "ssedge",
		Short:         "Remote host registry with verified SSH sessions and on-demand metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.out = cmd.OutOrStdout()
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return c.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app != nil {
				return c.app.Close()
			}
			return nil
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "config file (default ./configs/config.yaml or ~/.ssedge/config.yaml)")
	pf.StringVarP(&c.output, "output", "o", "table", "output format: table|json|yaml")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "also log to the console")
	pf.StringVar(&c.session.user, "user", ssh.DefaultUsername, "SSH username")
	pf.Uint16Var(&c.session.port, "port", ssh.DefaultPort, "SSH port")
	pf.BoolVar(&c.session.strict, "strict", true, "verify host keys against known_hosts")
	pf.Uint64Var(&c.session.timeout, "timeout", uint64(ssh.DefaultTimeout.Seconds()), "connect timeout in seconds")

	root.AddCommand(
		c.deviceCmd(),
		c.connectCmd(),
		c.testCmd(),
		c.metricsCmd(),
		c.execCmd(),
		c.tunnelCmd(),
		c.logPathCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "ssedge", version)
			},
		},
	)
	handler.Version = version
	return root
}

// open 加载配置、初始化日志并打开存储
func (c *cli) open() error {
	switch c.output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q", c.output)
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	logCfg := app.LoggerConfig(cfg.Log)
	if !c.verbose && logCfg.FilePath != "" {
		// 命令行默认只写日志文件，保持标准输出干净
		logCfg.Output = "file"
	}
	if err := logger.Init(logCfg); err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

// sessionConfig 将显式设置的标志转换为会话参数
func (c *cli) sessionConfig(cmd *cobra.Command) ssh.SessionConfig {
	var cfg ssh.SessionConfig
	flags := cmd.Flags()
	if flags.Changed("user") {
		cfg = cfg.WithUsername(strings.TrimSpace(c.session.user))
	}
	if flags.Changed("port") {
		cfg = cfg.WithPort(c.session.port)
	}
	if flags.Changed("strict") {
		cfg = cfg.WithStrictHostKeyChecking(c.session.strict)
	}
	if flags.Changed("timeout") {
		cfg = cfg.WithConnectTimeout(c.session.timeout)
	}
	return cfg
}

// explain 为连接错误补充可操作的提示
func explain(err error) error {
	var connErr *ssh.ConnectionError
	if !errors.As(err, &connErr) {
		return err
	}
	switch connErr.Kind {
	case ssh.KindUnknownHostKey:
		return fmt.Errorf("%w (add the host to known_hosts or pass --strict=false)", err)
	case ssh.KindHostKeyMismatch:
		return fmt.Errorf("%w (the host key changed; verify the host before updating known_hosts)", err)
	case ssh.KindAuthFailed:
		return fmt.Errorf("%w (check ssh-agent, ssh.identity_files or --user)", err)
	}
	return err
}
