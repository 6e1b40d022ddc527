package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// runStart starts the server, either in the foreground or as a detached
// background process that keeps serving after this command returns.
func runStart(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	daemon := fs.Bool("daemon", false, "run in the background")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if pid, alive := readAlivePID(cfg.pidPath()); alive {
		fatalf("server already running (PID %d)", pid)
	}

	if !*daemon {
		runServe([]string{"-config-root", cfg.ConfigRoot})
		return
	}

	self, err := os.Executable()
	if err != nil {
		fatalf("cannot determine executable path: %v", err)
	}

	cmd := exec.Command(self, "serve", "-config-root", cfg.ConfigRoot)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		fatalf("cannot start server: %v", err)
	}
	fmt.Printf("Server started in background (PID %d)\n", cmd.Process.Pid)
	_ = cmd.Process.Release()
}

// runStop signals a running background server and waits for it to exit.
func runStop(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	pid, alive := readAlivePID(cfg.pidPath())
	if !alive {
		fmt.Println("Server is not running")
		return
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		fatalf("cannot find process %d: %v", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		fatalf("cannot signal process %d: %v", pid, err)
	}

	// Wait for exit (up to 10s).
	for i := 0; i < 100; i++ {
		time.Sleep(100 * time.Millisecond)
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			fmt.Printf("Server stopped (PID %d)\n", pid)
			return
		}
	}
	fatalf("server (PID %d) did not stop within 10s", pid)
}

// runStatus reports whether a background server is running.
func runStatus(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	asJSON := fs.Bool("json", false, "output JSON")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	pid, alive := readAlivePID(cfg.pidPath())
	if *asJSON {
		status := map[string]any{"running": alive}
		if alive {
			status["pid"] = pid
		}
		data, err := json.Marshal(status)
		if err != nil {
			fatalf("marshal status: %v", err)
		}
		fmt.Println(string(data))
		return
	}
	if alive {
		fmt.Printf("Server is running (PID %d)\n", pid)
		return
	}
	fmt.Println("Server is not running")
}

// readAlivePID reads the pid file and checks whether the process is alive.
func readAlivePID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	return pid, true
}
