// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command llmcompiler is the CLI entry point: it wires a configured
// provider, tool registry, and metrics sink into a compiler loop and
// runs it once against a question.
//
// Usage:
//
//	llmcompiler run --config config.yaml "What is 3 * (4 + 5)?"
//	llmcompiler validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/kadirpekel/llmcompiler/internal/compiler"
	"github.com/kadirpekel/llmcompiler/internal/config"
	"github.com/kadirpekel/llmcompiler/internal/joiner"
	"github.com/kadirpekel/llmcompiler/internal/llm"
	"github.com/kadirpekel/llmcompiler/internal/logger"
	"github.com/kadirpekel/llmcompiler/internal/metrics"
	"github.com/kadirpekel/llmcompiler/internal/planner"
	"github.com/kadirpekel/llmcompiler/internal/tfu"
	"github.com/kadirpekel/llmcompiler/internal/tool"
	"github.com/kadirpekel/llmcompiler/tools/mathtool"
	"github.com/kadirpekel/llmcompiler/tools/searchtool"
)

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Run the compiler loop once against a question."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file without running anything."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd prints build info.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		version = info.Main.Version
	}
	fmt.Printf("llmcompiler version %s\n", version)
	return nil
}

// ValidateCmd loads and validates a config file.
type ValidateCmd struct {
	Config string `short:"c" required:"" help:"Path to config file." type:"path"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	if _, err := config.Load(c.Config); err != nil {
		return err
	}
	fmt.Println("config is valid")
	return nil
}

// RunCmd runs the compiler loop once.
type RunCmd struct {
	Config   string `short:"c" required:"" help:"Path to config file." type:"path"`
	Stream   bool   `help:"Dispatch tasks as the planner streams them instead of waiting for the full plan."`
	Question string `arg:"" help:"The question to answer."`
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	log := logger.New(logger.ParseLevel(cli.LogLevel), os.Stderr).With("run_id", uuid.NewString())

	providers := llm.NewRegistry()
	for name, p := range cfg.Providers {
		apiKey := os.Getenv(p.APIKeyEnv)
		switch name {
		case "anthropic":
			providers.Register(name, llm.NewAnthropicProvider(apiKey, "", p.Host))
		default:
			providers.Register(name, llm.NewOpenAIProvider(apiKey, "", p.Host))
		}
	}

	plannerProvider, ok := providers.Get(cfg.Planner.Provider)
	if !ok {
		return fmt.Errorf("run: planner provider %q not configured", cfg.Planner.Provider)
	}
	joinerProvider, ok := providers.Get(cfg.Joiner.Provider)
	if !ok {
		return fmt.Errorf("run: joiner provider %q not configured", cfg.Joiner.Provider)
	}

	registry := tool.NewRegistry()
	for _, tc := range cfg.Tools {
		t, err := buildTool(tc, plannerProvider)
		if err != nil {
			return err
		}
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("run: registering tool %q: %w", tc.Name, err)
		}
	}

	sink := metrics.NewPrometheusSink()

	p := planner.New(modelNamed(plannerProvider, cfg.Planner.Model), registry, nil)
	j := joiner.New(modelNamed(joinerProvider, cfg.Joiner.Model), nil)
	e := tfu.New(registry, sink)

	// compiler.New forwards sink into p and j (both implement UseSink),
	// so planner/joiner token counts and task latency all land in the
	// same registry, served below.
	loop := compiler.New(p, e, j, cfg.Compiler.MaxReplans, sink)
	loop.Streaming = c.Stream

	metricsAddr := cfg.Compiler.MetricsAddr
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", sink.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", "err", err)
			}
		}()
		log.Info("serving metrics", "addr", metricsAddr)
	}

	log.Info("running compiler loop", "question", c.Question)
	answer, err := loop.Run(context.Background(), c.Question)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}

// namedProvider pins a configured model name onto a provider's requests,
// since the config assigns the model per-role rather than per-provider.
type namedProvider struct {
	llm.Provider
	model string
}

func (n *namedProvider) ModelName() string { return n.model }

func modelNamed(p llm.Provider, model string) llm.Provider {
	if model == "" {
		return p
	}
	return &namedProvider{Provider: p, model: model}
}

func buildTool(tc config.ToolConfig, p llm.Provider) (tool.Tool, error) {
	switch tc.Type {
	case "search":
		return searchtool.New(""), nil
	case "math":
		return mathtool.New(p), nil
	default:
		return nil, fmt.Errorf("run: unknown tool type %q for tool %q", tc.Type, tc.Name)
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("llmcompiler"),
		kong.Description("Plans, executes, and joins tool calls in parallel to answer a question."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
