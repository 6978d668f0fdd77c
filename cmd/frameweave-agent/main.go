package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frameweave/agent/internal/ipc"
	"github.com/frameweave/agent/internal/logging"
	"github.com/frameweave/agent/internal/runtime"
)

var (
	version   = "0.1.0"
	cfgFile   string
	logLevel  string
	logFormat string
	logFile   string
	titles    []string
	diagAddr  string
)

const connectTimeout = 3 * time.Second

var rootCmd = &cobra.Command{
	Use:   "frameweave-agent",
	Short: "FrameWeave frame-generation agent",
	Long:  `FrameWeave Agent - frame generation interposer control for DirectX hosts`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var out io.Writer = os.Stderr
		if logFile != "" {
			w, err := logging.NewRotatingWriter(logFile, 0, 0)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Cannot open log file: %v\n", err)
				os.Exit(1)
			}
			out = w
		}
		logging.Init(logFormat, logLevel, out)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interposer runtime in this process",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the running interposer",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle [generation|overlay]",
	Short: "Flip frame generation or the overlay panel",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		toggle(args[0])
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update one setting on the running interposer",
	Long: `Update one setting on the running interposer.

Keys: enabled, backend, quality, sharpness, target_framerate,
show_overlay, hudless_mode`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		set(args[0], args[1])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("FrameWeave Agent v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default is the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log to this file with size-based rotation (default stderr)")
	runCmd.Flags().StringSliceVar(&titles, "window-title", nil, "host window title substrings to hook")
	runCmd.Flags().StringVar(&diagAddr, "diag-addr", "", "diagnostics websocket address (\"off\" disables)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAgent() {
	rt := runtime.New(runtime.Options{
		ConfigPath:   cfgFile,
		WindowTitles: titles,
		DiagAddr:     diagAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("FrameWeave Agent v%s running\n", version)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	fmt.Println("\nShutting down...")
	rt.Stop()
}

func connect() *ipc.Client {
	client, err := ipc.Connect(connectTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach the interposer: %v\n", err)
		fmt.Fprintln(os.Stderr, "Is a hooked host process running?")
		os.Exit(1)
	}
	return client
}

func checkStatus() {
	client := connect()
	defer client.Close()

	st, err := client.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status request failed: %v\n", err)
		os.Exit(1)
	}

	state := "disabled"
	if st.Config.Enabled {
		state = "enabled"
	}
	fmt.Printf("Status: %s (hooks %s)\n", state, initializedWord(st.Initialized))
	fmt.Printf("Backend: %s  Quality: %s  Sharpness: %.2f\n",
		st.Config.Backend, st.Config.Quality, st.Config.Sharpness)
	fmt.Printf("FPS: %.1f base / %.1f output  Frame: %.2fms  GPU: %.2fms\n",
		st.Stats.BaseFPS, st.Stats.OutputFPS, st.Stats.FrameTimeMs, st.Stats.GPUTimeMs)
	fmt.Printf("Frames: %d observed, %d generated, %d missed\n",
		st.Stats.FramesObserved, st.Stats.FramesGenerated, st.Stats.FramesMissed)
	if st.Host.PID != 0 {
		fmt.Printf("Host: %s (pid %d) rss %d MiB cpu %.1f%%\n",
			st.Host.Executable, st.Host.PID, st.Host.RSSBytes>>20, st.Host.CPUPercent)
	}
}

func initializedWord(ok bool) string {
	if ok {
		return "installed"
	}
	return "not installed"
}

func toggle(target string) {
	target = strings.ToLower(target)
	if target != ipc.TargetGeneration && target != ipc.TargetOverlay {
		fmt.Fprintf(os.Stderr, "Unknown target %q (use generation or overlay)\n", target)
		os.Exit(1)
	}

	client := connect()
	defer client.Close()

	reply, err := client.Toggle(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Toggle failed: %v\n", err)
		os.Exit(1)
	}
	state := "off"
	if reply.Enabled {
		state = "on"
	}
	fmt.Printf("%s is now %s\n", reply.Target, state)
}

func set(key, value string) {
	client := connect()
	defer client.Close()

	if err := client.Set(key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Set failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s = %s\n", key, value)
}
