package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb"
)

// Command represents a shell command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Handler     func(ctx context.Context, args []string) error
}

// CommandRegistry holds all available commands
type CommandRegistry struct {
	commands map[string]*Command
}

var commands = NewCommandRegistry()

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]*Command)}
}

// Register adds a command under its name and aliases
func (r *CommandRegistry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.commands[alias] = cmd
	}
}

// Get retrieves a command by name or alias
func (r *CommandRegistry) Get(name string) *Command {
	return r.commands[name]
}

// List returns all unique commands sorted by name
func (r *CommandRegistry) List() []*Command {
	seen := make(map[string]bool)
	var list []*Command
	for _, cmd := range r.commands {
		if !seen[cmd.Name] {
			seen[cmd.Name] = true
			list = append(list, cmd)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// executeCommand runs a command and reports whether the shell should
// keep going.
func executeCommand(ctx context.Context, name string, args []string) bool {
	cmd := commands.Get(name)
	if cmd == nil {
		error_("Unknown command: %s (type 'help' for commands)", name)
		return true
	}
	if err := cmd.Handler(ctx, args); err != nil {
		error_("%v", describe(err))
	}
	return cmd.Name != "exit"
}

// describe adds the NTSTATUS code to protocol errors.
func describe(err error) string {
	if st := smb.StatusOf(err); st != 0 {
		return fmt.Sprintf("%v (0x%08X)", err, uint32(st))
	}
	return err.Error()
}

func init() {
	registerCoreCommands()
	registerShareCommands()
	registerFileCommands()
	registerTransferCommands()
}

func registerCoreCommands() {
	commands.Register(&Command{
		Name:        "help",
		Aliases:     []string{"?", "h"},
		Description: "Show available commands",
		Usage:       "help [command]",
		Handler:     cmdHelp,
	})
	commands.Register(&Command{
		Name:        "exit",
		Aliases:     []string{"quit", "q"},
		Description: "Exit the shell",
		Handler:     cmdExit,
	})
	commands.Register(&Command{
		Name:        "info",
		Aliases:     []string{"whoami"},
		Description: "Show session info",
		Handler:     cmdInfo,
	})
	commands.Register(&Command{
		Name:        "echo",
		Aliases:     []string{"ping"},
		Description: "Send a keep-alive to the server",
		Handler:     cmdEcho,
	})
	commands.Register(&Command{
		Name:        "logoff",
		Description: "Log off and close the connection",
		Handler:     cmdLogoff,
	})
	commands.Register(&Command{
		Name:        "clear",
		Aliases:     []string{"cls"},
		Description: "Clear the screen",
		Handler:     cmdClear,
	})
}

func cmdHelp(ctx context.Context, args []string) error {
	if len(args) > 0 {
		cmd := commands.Get(args[0])
		if cmd == nil {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		fmt.Printf("\n%s%s%s - %s\n", colorBold, cmd.Name, colorReset, cmd.Description)
		if cmd.Usage != "" {
			fmt.Printf("Usage: %s\n", cmd.Usage)
		}
		if len(cmd.Aliases) > 0 {
			fmt.Printf("Aliases: %s\n", strings.Join(cmd.Aliases, ", "))
		}
		fmt.Println()
		return nil
	}

	categories := map[string][]string{
		"Core":      {"help", "exit", "info", "echo", "logoff", "clear"},
		"Shares":    {"shares", "serverinfo", "pipes", "use", "disconnect", "df"},
		"Files":     {"ls", "cd", "pwd", "stat", "mkdir", "rm", "rmdir", "mv"},
		"Transfers": {"get", "put", "putdir", "jobs"},
	}
	order := []string{"Core", "Shares", "Files", "Transfers"}

	fmt.Println()
	for _, cat := range order {
		fmt.Printf("%s%s:%s\n", colorCyan, cat, colorReset)
		for _, name := range categories[cat] {
			if cmd := commands.Get(name); cmd != nil {
				fmt.Printf("  %-12s %s\n", cmd.Name, cmd.Description)
			}
		}
		fmt.Println()
	}
	return nil
}

func cmdExit(ctx context.Context, args []string) error {
	if queue != nil && queue.Pending() > 0 {
		info_("Waiting for %d queued transfer(s)...", queue.Pending())
	}
	info_("Goodbye!")
	return nil
}

func cmdInfo(ctx context.Context, args []string) error {
	sess := client.Session()
	if sess == nil {
		return fmt.Errorf("not connected")
	}

	user := currentUser
	if currentDomain != "" {
		user = currentDomain + `\` + currentUser
	}
	if sess.IsAnonymous() {
		user = "(anonymous)"
	}
	rows := [][]string{
		{"Target", client.Host()},
		{"User", user},
		{"Session ID", fmt.Sprintf("0x%016X", sess.SessionID())},
		{"Dialect", sess.Dialect().String()},
		{"Signing", fmt.Sprintf("%v", sess.IsSigning())},
		{"Guest", fmt.Sprintf("%v", sess.IsGuest())},
		{"Max read", formatSize(int64(sess.MaxReadSize()))},
		{"Max write", formatSize(int64(sess.MaxWriteSize()))},
	}
	if currentTree != nil {
		rows = append(rows, []string{"Share", currentTree.Share()})
	}
	fmt.Println()
	printTable(stdout, []string{"Property", "Value"}, rows)
	fmt.Println()
	return nil
}

func cmdEcho(ctx context.Context, args []string) error {
	if err := client.Echo(ctx); err != nil {
		return err
	}
	success_("Server is alive")
	return nil
}

func cmdLogoff(ctx context.Context, args []string) error {
	releaseTree(ctx)
	if err := client.Logoff(ctx); err != nil {
		return err
	}
	success_("Logged off")
	return nil
}

func cmdClear(ctx context.Context, args []string) error {
	fmt.Print("\033[H\033[2J")
	return nil
}
