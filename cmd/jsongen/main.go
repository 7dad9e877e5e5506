package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/jsongen"
	"github.com/wippyai/jsongen/compiler"
	"github.com/wippyai/jsongen/config"
	"github.com/wippyai/jsongen/types"
)

type names interface {
	Names() []string
}

func main() {
	var (
		cfgFile     = flag.String("config", "", "Path to HCL engine config")
		signature   = flag.String("type", "", "Type signature to generate")
		decodeFile  = flag.String("decode", "", "Decode a JSON file as -type and print the result")
		list        = flag.Bool("list", false, "List declared classes and enums and exit")
		clearCache  = flag.Bool("clear", false, "Remove cached artifacts and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *cfgFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: jsongen -config <file.hcl> -type <signature>")
		fmt.Fprintln(os.Stderr, "       jsongen -config <file.hcl> -type <signature> -decode <file.json>")
		fmt.Fprintln(os.Stderr, "       jsongen -config <file.hcl> -list")
		fmt.Fprintln(os.Stderr, "       jsongen -config <file.hcl> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*cfgFile, *signature, *decodeFile, *list, *clearCache); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func load(ctx context.Context, cfgFile string, quiet bool) (*jsongen.Engine, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if !quiet {
		level, err := cfg.Level()
		if err != nil {
			return nil, err
		}
		zc := zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(level)
		logger, err := zc.Build()
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		jsongen.SetLogger(logger)
	}

	return jsongen.FromConfig(ctx, cfg)
}

func run(cfgFile, signature, decodeFile string, listOnly, clearOnly bool) error {
	ctx := context.Background()

	eng, err := load(ctx, cfgFile, false)
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	if clearOnly {
		return eng.ClearCache()
	}

	if listOnly {
		n, ok := eng.Provider().(names)
		if !ok {
			return fmt.Errorf("provider cannot list its declarations")
		}
		for _, name := range n.Names() {
			fmt.Println(name)
		}
		return nil
	}

	if signature == "" {
		return fmt.Errorf("-type is required")
	}

	if decodeFile != "" {
		data, err := os.ReadFile(decodeFile)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		v, err := eng.Decode(signature, data)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		out, err := eng.EncodeBytes(ctx, types.Mixed, v)
		if err != nil {
			return fmt.Errorf("print result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	text, path, err := render(eng, signature)
	if err != nil {
		return err
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(titleStyle.Render(signature) + " " + helpStyle.Render(path))
	} else {
		fmt.Println("// " + path)
	}
	fmt.Print(text)
	return nil
}

// render returns the readable program for signature and where its artifact
// is stored.
func render(eng *jsongen.Engine, signature string) (string, string, error) {
	t, err := types.Parse(signature)
	if err != nil {
		return "", "", err
	}
	art, err := eng.Artifact(signature)
	if err != nil {
		return "", "", err
	}
	path := eng.Cache().Path(eng.Key(t))
	if path == "" {
		path = "(memory)"
	}
	return compiler.Render(art), path, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)
