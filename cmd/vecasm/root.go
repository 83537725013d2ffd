package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tangzhangming/vecasm/internal/config"
	"github.com/tangzhangming/vecasm/internal/cpu"
	"github.com/tangzhangming/vecasm/internal/jit/platform"
	"github.com/tangzhangming/vecasm/internal/logging"
	"github.com/tangzhangming/vecasm/internal/ptrcompr"
)

const (
	Version = "0.1.0"

	// configEnv 配置文件路径的环境变量，--config 优先
	configEnv = "VECASM_CONFIG"
)

// BannerColor 根命令说明的颜色
var BannerColor = color.New(color.FgCyan)

// globalState 所有子命令共享的状态
type globalState struct {
	fs        afero.Fs
	stdout    io.Writer
	stderr    io.Writer
	stdoutTTY bool
	lookupEnv func(string) (string, bool)
	// oracle 进程级 CPU 特性表，由 persistentPreRunE 初始化一次
	oracle *cpu.Oracle

	flags globalFlags

	// 以下字段由 persistentPreRunE 填充
	cfg    *config.Config
	mode   platform.Mode
	logger *zap.Logger
	cages  ptrcompr.Registry

	pass *color.Color
	fail *color.Color
}

// globalFlags 根命令的持久参数
type globalFlags struct {
	configPath string
	features   string
	target     string
	noChecks   bool
	logLevel   string
	noColor    bool
}

func newGlobalState() *globalState {
	stdoutTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return &globalState{
		fs:        afero.NewOsFs(),
		stdout:    colorable.NewColorableStdout(),
		stderr:    colorable.NewColorableStderr(),
		stdoutTTY: stdoutTTY,
		lookupEnv: os.LookupEnv,
		oracle:    cpu.Process(),
		logger:    logging.Nop(),
	}
}

// rootCommand 根命令
type rootCommand struct {
	gs  *globalState
	cmd *cobra.Command
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{gs: gs}
	c.cmd = &cobra.Command{
		Use:               "vecasm",
		Short:             "x86 SIMD macro assembler and pointer compression toolkit",
		Long:              BannerColor.Sprint("\nvecasm - wasm SIMD lowering for SSE and AVX\n"),
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	c.cmd.SetOut(gs.stdout)
	c.cmd.SetErr(gs.stderr)
	c.cmd.PersistentFlags().AddFlagSet(c.rootCmdPersistentFlagSet())

	ptrCmd := getCmdPtr(gs)
	ptrCmd.AddCommand(
		getCmdPtrCompress(gs),
		getCmdPtrDecompress(gs),
		getCmdPtrIntermediate(gs),
	)
	c.cmd.AddCommand(
		getCmdInit(gs),
		getCmdOps(gs),
		getCmdEmit(gs),
		getCmdRun(gs),
		getCmdVerify(gs),
		ptrCmd,
	)
	return c
}

func (c *rootCommand) rootCmdPersistentFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	f := &c.gs.flags
	flags.StringVarP(&f.configPath, "config", "c", "", "config file (default: $"+configEnv+" or ./"+config.ConfigFileName+")")
	flags.StringVar(&f.features, "features", "", "CPU features: auto, baseline or a list such as avx,sse4.1")
	flags.StringVar(&f.target, "target", "", "target mode: x64 or ia32")
	flags.BoolVar(&f.noChecks, "no-checks", false, "disable emitter assertions")
	flags.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	return flags
}

// explicitConfigPath 返回 --config 或环境变量指定的路径
func (gs *globalState) explicitConfigPath() string {
	if gs.flags.configPath != "" {
		return gs.flags.configPath
	}
	if p, ok := gs.lookupEnv(configEnv); ok && p != "" {
		return p
	}
	return ""
}

// configPath 依次取 --config、环境变量、当前目录下的默认文件
func (c *rootCommand) configPath() string {
	gs := c.gs
	if p := gs.explicitConfigPath(); p != "" {
		return p
	}
	if ok, _ := afero.Exists(gs.fs, config.ConfigFileName); ok {
		return config.ConfigFileName
	}
	return ""
}

func (c *rootCommand) persistentPreRunE(cmd *cobra.Command, _ []string) error {
	gs := c.gs
	path := c.configPath()
	cfg, err := config.Load(gs.fs, path, gs.lookupEnv)
	if err != nil {
		return err
	}

	// 命令行参数覆盖文件和环境变量
	flags := cmd.Flags()
	if flags.Changed("features") {
		cfg.Features = gs.flags.features
	}
	if flags.Changed("target") {
		cfg.Target = gs.flags.target
	}
	if flags.Changed("no-checks") {
		cfg.Checked = !gs.flags.noChecks
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = gs.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, gs.stderr, gs.lookupEnv)
	if err != nil {
		return err
	}
	gs.cfg = cfg
	gs.logger = logger
	// Validate 已经检查过
	gs.mode, _ = cfg.Mode()
	features, _ := cfg.CPUFeatures()
	if err := gs.oracle.Init(features); err != nil {
		return err
	}
	if err := c.registerCages(cfg); err != nil {
		return err
	}

	gs.pass = color.New(color.FgGreen, color.Bold)
	gs.fail = color.New(color.FgRed, color.Bold)
	if gs.flags.noColor || !gs.stdoutTTY {
		gs.pass.DisableColor()
		gs.fail.DisableColor()
	}

	logger.Debug("configuration loaded",
		zap.String("file", path),
		zap.Stringer("mode", gs.mode),
		zap.Stringer("features", gs.oracle.Features()),
		zap.Bool("checked", cfg.Checked),
	)
	return nil
}

// registerCages 把配置中的笼子写入注册表，每种只写一次
func (c *rootCommand) registerCages(cfg *config.Config) error {
	heap, err := cfg.HeapCage()
	if err != nil {
		return err
	}
	code, err := cfg.CodeCage()
	if err != nil {
		return err
	}
	return multierr.Combine(c.gs.cages.SetHeapCage(heap), c.gs.cages.SetCodeCage(code))
}

// errVerifyFailed verify 发现不一致
var errVerifyFailed = errors.New("verification failed")

func execute(gs *globalState, args []string) int {
	root := newRootCommand(gs)
	root.cmd.SetArgs(args)
	err := root.cmd.Execute()
	_ = gs.logger.Sync()
	if err != nil {
		fmt.Fprintf(gs.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
