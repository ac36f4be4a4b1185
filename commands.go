package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LingHeChen/stencil/logger"
	"github.com/LingHeChen/stencil/mock"
	"github.com/LingHeChen/stencil/request"
	"github.com/LingHeChen/stencil/sandbox"
	"github.com/LingHeChen/stencil/template"
	"github.com/LingHeChen/stencil/variable"
)

// ---------------------------------------------------------
// 变量相关 flag
// ---------------------------------------------------------

// varFlags 是 render / build / send 共用的变量来源
type varFlags struct {
	files  []string
	dotenv string
	set    []string
	sync   bool
}

func (f *varFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.files, "vars", nil, "YAML variables file (repeatable, later files win)")
	cmd.Flags().StringVar(&f.dotenv, "dotenv", "", ".env file loaded as environment variables")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "Local context entry key=value, available as {{_local.key}}")
}

// load 读取并合并变量，返回变量列表和本地上下文
func (f *varFlags) load() ([]variable.Variable, map[string]interface{}, error) {
	var lists [][]variable.Variable

	if f.dotenv != "" {
		vars, err := variable.LoadDotenv(f.dotenv)
		if err != nil {
			return nil, nil, err
		}
		lists = append(lists, vars)
	}
	for _, path := range f.files {
		vars, err := variable.LoadFile(path, variable.ScopeProject)
		if err != nil {
			return nil, nil, err
		}
		lists = append(lists, vars)
	}

	local, err := parseAssignments(f.set)
	if err != nil {
		return nil, nil, err
	}
	return variable.Merge(lists...), local, nil
}

// parseAssignments 解析 key=value 列表
func parseAssignments(items []string) (map[string]interface{}, error) {
	if len(items) == 0 {
		return nil, nil
	}
	local := make(map[string]interface{}, len(items))
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", item)
		}
		local[key] = value
	}
	return local, nil
}

// newEngine 按配置创建模板引擎，返回的 cleanup 关闭沙箱进程
func newEngine(ctx context.Context) (*template.Engine, func(), error) {
	opts := []template.Option{
		template.WithGenerator(mock.New(mock.WithSeed(cfg.MockSeed))),
		template.WithFlattenOptions(variable.FlattenOptions{Strict: cfg.StrictAny}),
	}
	cleanup := func() {}

	switch {
	case !cfg.SandboxEnabled:
		opts = append(opts, template.WithExecutor(nil))
	case cfg.SandboxProcess:
		exe, err := os.Executable()
		if err != nil {
			return nil, nil, fmt.Errorf("locate executable: %w", err)
		}
		client, err := sandbox.StartProcess(ctx, exe, "sandbox", "--log-level", cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, template.WithExecutor(client))
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Debug("Sandbox worker exited", "error", err)
			}
		}
	default:
		opts = append(opts, template.WithExecutor(sandbox.NewLocal(sandbox.WithTimeout(cfg.SandboxTimeout))))
	}

	return template.New(opts...), cleanup, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------
// 子命令
// ---------------------------------------------------------

var renderFlags varFlags

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Resolve a single template and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vars, local, err := renderFlags.load()
		if err != nil {
			return err
		}
		engine, cleanup, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		var result interface{}
		if renderFlags.sync {
			scope, err := engine.NewScope(cmd.Context(), vars, local)
			if err != nil {
				return err
			}
			result = engine.Resolve(args[0], scope)
		} else {
			result = engine.Compile(cmd.Context(), args[0], vars, local)
		}
		return printJSON(result)
	},
}

var buildFlags varFlags

var buildCmd = &cobra.Command{
	Use:   "build <request.yaml>",
	Short: "Resolve a request file and print it without sending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prepared, err := buildRequest(cmd.Context(), args[0], &buildFlags)
		if err != nil {
			return err
		}
		return printJSON(prepared)
	},
}

var sendFlags varFlags

var sendCmd = &cobra.Command{
	Use:   "send <request.yaml>",
	Short: "Resolve a request file and send it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		prepared, err := buildRequest(cmd.Context(), args[0], &sendFlags)
		if err != nil {
			return err
		}

		client := request.New(request.WithTimeout(cfg.HTTPTimeout))
		resp, err := client.Do(cmd.Context(), prepared)
		if err != nil {
			return err
		}
		printResponse(resp, time.Since(start))
		return nil
	},
}

var sandboxCmd = &cobra.Command{
	Use:    "sandbox",
	Short:  "Run the isolated script worker on stdin/stdout",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return sandbox.Serve(cmd.Context(), os.Stdin, os.Stdout,
			sandbox.WithTimeout(cfg.SandboxTimeout),
			sandbox.WithLogger(logger.NewStyledLogger(os.Stderr, "sandbox")),
		)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("stencil version %s\n", version)
	},
}

func init() {
	renderFlags.register(renderCmd)
	renderCmd.Flags().BoolVar(&renderFlags.sync, "sync", false, "Resolve without mock generation or sandbox execution")
	buildFlags.register(buildCmd)
	sendFlags.register(sendCmd)
}

func buildRequest(ctx context.Context, path string, flags *varFlags) (*request.Prepared, error) {
	spec, err := request.LoadSpec(path)
	if err != nil {
		return nil, err
	}
	vars, local, err := flags.load()
	if err != nil {
		return nil, err
	}
	engine, cleanup, err := newEngine(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return request.Build(ctx, engine, spec, vars, local)
}

// ---------------------------------------------------------
// 输出
// ---------------------------------------------------------

func printResponse(resp *request.Response, totalTime time.Duration) {
	bold := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.Faint)

	// 状态颜色
	status := color.New(color.FgGreen)
	if resp.StatusCode >= 400 {
		status = color.New(color.FgRed)
	} else if resp.StatusCode >= 300 {
		status = color.New(color.FgYellow)
	}

	// 状态行
	fmt.Printf("%s %s\n", status.Sprint(resp.Status),
		dim.Sprintf("(%v, total %v)", resp.Duration.Round(time.Millisecond), totalTime.Round(time.Millisecond)))
	dim.Println(strings.Repeat("─", 50))

	// Headers
	bold.Println("Headers")
	for k, v := range resp.Headers {
		fmt.Printf("  %s: %s\n", dim.Sprint(k), v)
	}
	dim.Println(strings.Repeat("─", 50))

	// Body
	bold.Println("Body")
	body := resp.String()

	// 尝试格式化 JSON
	if jsonData, err := resp.JSON(); err == nil {
		if formatted, err := json.MarshalIndent(jsonData, "", "  "); err == nil {
			body = string(formatted)
		}
	}
	fmt.Println(body)
}
