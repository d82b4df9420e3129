package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/creack/pty"
	linkterm "github.com/danielgatis/go-linkterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var version = "0.1.0"

// exitCode is the wrapped shell's exit status, propagated after cleanup.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "linkterm",
	Short: "Transparent shell wrapper that hyperlinks file references",
	Long: `Runs your login shell inside a pseudo-terminal and rewrites file
references in its output (src/main.go:42, Python traceback frames, ...) into
OSC 8 hyperlinks, so compatible terminal emulators render them as clickable
links. The shell and the programs it runs are unaware of the transformation.`,
	Args:          cobra.NoArgs,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("shell", "s", "", "Shell to launch (default $SHELL)")
	rootCmd.PersistentFlags().String("url-template", "", "URL template with {abs_path} and {line} placeholders")
	rootCmd.PersistentFlags().StringSlice("rules", nil, "Enabled rules in priority order")
	rootCmd.PersistentFlags().Bool("require-existing-path", true, "Only link paths that exist on disk")
	rootCmd.PersistentFlags().String("log-file", "", "Write debug logs to this file (stdout belongs to the shell)")

	_ = viper.BindPFlag("shell", rootCmd.PersistentFlags().Lookup("shell"))
	_ = viper.BindPFlag("url_template", rootCmd.PersistentFlags().Lookup("url-template"))
	_ = viper.BindPFlag("rules", rootCmd.PersistentFlags().Lookup("rules"))
	_ = viper.BindPFlag("require_existing_path", rootCmd.PersistentFlags().Lookup("require-existing-path"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	viper.SetDefault("shell", "")
	viper.SetDefault("url_template", linkterm.DefaultTemplate)
	viper.SetDefault("rules", []string{"PythonTraceback", "IpdbTraceback", "FilePath"})
	viper.SetDefault("require_existing_path", true)
	viper.SetDefault("log_file", "")

	viper.SetConfigName("linkterm")
	viper.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "linkterm"))
	}
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("LINKTERM")
	viper.AutomaticEnv()

	// Missing or malformed config files are not fatal; flags and defaults apply.
	_ = viper.ReadInConfig()
}

// newLogger builds a file logger when configured, a no-op otherwise. The
// wrapper must never log to stdout or stderr while running: both belong to
// the terminal byte stream.
func newLogger(path string) *zap.Logger {
	if path == "" {
		return zap.NewNop()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newTransformer builds the pipeline from configuration, validating the URL
// template and rule names up front.
func newTransformer() (*linkterm.Transformer, error) {
	tmpl, err := linkterm.ParseURLTemplate(viper.GetString("url_template"))
	if err != nil {
		return nil, err
	}

	rules, err := linkterm.RulesByName(viper.GetStringSlice("rules"))
	if err != nil {
		return nil, err
	}

	return linkterm.New(
		linkterm.WithURLTemplate(tmpl),
		linkterm.WithRules(rules...),
		linkterm.WithRequireExistingPath(viper.GetBool("require_existing_path")),
	), nil
}

func run(cmd *cobra.Command, args []string) error {
	logger := newLogger(viper.GetString("log_file"))
	defer func() { _ = logger.Sync() }()

	tr, err := newTransformer()
	if err != nil {
		return err
	}

	stdin := int(os.Stdin.Fd())
	if !term.IsTerminal(stdin) {
		return fmt.Errorf("standard input is not a terminal")
	}

	shell := viper.GetString("shell")
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/bash"
	}

	c := exec.Command(shell)
	c.Env = os.Environ()

	// Size the PTY from the real terminal before the shell starts, so
	// full-screen programs query correct dimensions.
	var winsize *pty.Winsize
	if cols, rows, serr := term.GetSize(stdin); serr == nil {
		winsize = &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
	} else {
		logger.Warn("could not get terminal size", zap.Error(serr))
	}

	var ptmx *os.File
	if winsize != nil {
		ptmx, err = pty.StartWithSize(c, winsize)
	} else {
		ptmx, err = pty.Start(c)
	}
	if err != nil {
		return fmt.Errorf("start shell: %w", err)
	}
	defer ptmx.Close()

	// Raw mode: no line buffering, no echo, no signal keys. Keypresses reach
	// the shell's own line editor unprocessed.
	oldState, err := term.MakeRaw(stdin)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer func() { _ = term.Restore(stdin, oldState) }()

	logger.Info("shell started",
		zap.String("shell", shell),
		zap.Int("pid", c.Process.Pid),
	)

	// Input direction: real terminal -> PTY, passed through opaquely. The
	// goroutine stays blocked on stdin after the shell exits and dies with
	// the process.
	go func() {
		_, _ = io.Copy(ptmx, os.Stdin)
	}()

	// Output direction: PTY -> transformer -> real terminal.
	done := make(chan struct{})
	go func() {
		defer close(done)
		forwardOutput(tr, ptmx, os.Stdout, logger)
	}()

	err = c.Wait()
	// The PTY read fails once the child is gone; wait for the forwarder to
	// drain whatever is left.
	<-done

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			logger.Info("shell exited", zap.Int("code", exitCode))
			return nil
		}
		return fmt.Errorf("wait for shell: %w", err)
	}
	logger.Info("shell exited", zap.Int("code", 0))
	return nil
}

// forwardOutput reads PTY chunks, transforms them, and writes the result to
// the real terminal. The transformer may retain an unterminated line to catch
// references split across reads; that retention only helps while more data is
// already queued, so the tail is flushed whenever the reader runs dry and
// prompts appear immediately.
func forwardOutput(tr *linkterm.Transformer, ptmx *os.File, w io.Writer, logger *zap.Logger) {
	reader := bufio.NewReaderSize(ptmx, 32*1024)
	buf := make([]byte, 8192)

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			out := tr.Transform(buf[:n])
			if reader.Buffered() == 0 {
				out = append(out, tr.Flush()...)
			}
			if len(out) > 0 {
				if _, werr := w.Write(out); werr != nil {
					logger.Error("write to terminal failed", zap.Error(werr))
					return
				}
			}
		}
		if err != nil {
			// EIO is the normal end of a PTY on Linux.
			if err != io.EOF {
				logger.Debug("pty read ended", zap.Error(err))
			}
			if out := tr.Flush(); len(out) > 0 {
				_, _ = w.Write(out)
			}
			return
		}
	}
}

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
