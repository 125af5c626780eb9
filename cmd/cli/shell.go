package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"fac1"
)

var shellCommands = []string{"left", "right", "up", "down", "status", "jog", "torque", "calibrate", "help", "quit"}

// jogKeys map single-letter shortcuts to jog directions.
var jogKeys = map[string]string{"l": "left", "r": "right", "u": "up", "d": "down"}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fac1_history"
	}
	return filepath.Join(home, ".fac1_history")
}

func runShell(ctx context.Context, ctrl *fac1.Controller) error {
	shell := liner.NewLiner()
	defer shell.Close()

	shell.SetCtrlCAborts(true)
	shell.SetCompleter(func(line string) (c []string) {
		for _, name := range shellCommands {
			if strings.HasPrefix(name, strings.ToLower(line)) {
				c = append(c, name)
			}
		}
		return
	})

	history := historyPath()
	if f, err := os.Open(history); err == nil {
		_, _ = shell.ReadHistory(f)
		f.Close()
	}

	fmt.Println(`Interactive mode, type "help" for commands, Ctrl-D to quit.`)
	printStatus(ctrl)
	for ctx.Err() == nil {
		input, err := shell.Prompt(fmt.Sprintf("fac1 [%s]> ", ctrl.ConnectionStatus()))
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println()
			break
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		shell.AppendHistory(input)

		tokens := strings.Fields(input)
		name := tokens[0]
		if dir, ok := jogKeys[name]; ok {
			name = dir
		}

		switch name {
		case "quit", "exit":
			saveHistory(shell, history)
			return nil
		case "help":
			fmt.Println("  l|left r|right u|up d|down   jog one step")
			fmt.Println("  jog <direction> [n]          jog n steps")
			fmt.Println("  torque <on|off>              enable or release torque")
			fmt.Println("  calibrate                    take a hand-set pose as center")
			fmt.Println("  status                       show servo health")
			continue
		case "left", "right", "up", "down":
			tokens = append([]string{"jog", name}, tokens[1:]...)
			name = "jog"
		}

		if err := runCommand(ctx, ctrl, name, tokens[1:]); err != nil {
			fmt.Println("error:", err)
		}
	}

	saveHistory(shell, history)
	return nil
}

func saveHistory(shell *liner.State, path string) {
	if f, err := os.Create(path); err == nil {
		_, _ = shell.WriteHistory(f)
		f.Close()
	}
}
