package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LingHeChen/stencil/config"
	"github.com/LingHeChen/stencil/logger"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	logFile  string

	settings = config.New()
	cfg      *config.Config
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "stencil - API 请求模板解析器",
	Long: `stencil 解析请求中的 {{ }} 占位符：变量、属性路径、表达式和 @ 模拟数据。

示例:
  # 解析单个模板
  stencil render '{{host}}/users/{{@integer(1,100)}}' --vars vars.yaml

  # 只解析请求文件，显示 JSON（不发请求）
  stencil build api/create-user.yaml --dotenv .env

  # 解析并发送
  stencil send api/create-user.yaml --vars vars.yaml --set token=abc

请求文件 (.yaml):
  post: "https://{{host}}/users"
  headers:
    Authorization: "Bearer {{_local.token}}"
  body:
    name: "{{@name}}"
    age: "{{age}}"          # 单个占位符保留原生类型
    id: "\{{literal}}"      # 转义，不解析
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fatal("%v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./stencil.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")

	// 绑定 flag 到 viper
	if err := settings.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fatal("Error binding log-level flag: %v", err)
	}
	if err := settings.BindPFlag(config.KeyLogFile, rootCmd.PersistentFlags().Lookup("log-file")); err != nil {
		fatal("Error binding log-file flag: %v", err)
	}

	rootCmd.AddCommand(renderCmd, buildCmd, sendCmd, sandboxCmd, versionCmd)

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	c, err := config.Load(settings, cfgFile)
	if err != nil {
		fatal("%v", err)
	}
	cfg = c

	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		fatal("Error configuring logger: %v", err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.RedString(format, args...))
	os.Exit(1)
}
