package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/ineffectivecoder/gosmbclient/pkg/config"
)

func runShell(ctx context.Context) {
	history := ""
	if dir := config.ConfigDir(); os.MkdirAll(dir, 0o700) == nil {
		history = filepath.Join(dir, "history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          buildPrompt(),
		HistoryFile:     history,
		AutoComplete:    &completer{ctx: ctx},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		error_("Failed to initialize readline: %v", err)
		return
	}
	defer rl.Close()

	for {
		rl.SetPrompt(buildPrompt())
		input, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if !errors.Is(err, io.EOF) {
				error_("%v", err)
			}
			break
		}

		args := parseArgs(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		if !executeCommand(ctx, strings.ToLower(args[0]), args[1:]) {
			break
		}
		if !client.IsConnected() {
			warn_("Not connected, leaving shell")
			break
		}
	}
}

// completer implements readline.AutoCompleter.
type completer struct {
	ctx context.Context
}

// Do returns the suffixes that complete the word under the cursor.
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	input := string(line[:pos])
	word := input
	if i := strings.LastIndexByte(input, ' '); i >= 0 {
		word = input[i+1:]
	}

	var out [][]rune
	for _, cand := range completeInput(c.ctx, input) {
		if strings.HasPrefix(strings.ToLower(cand), strings.ToLower(word)) {
			out = append(out, []rune(cand[len(word):]))
		}
	}
	return out, len([]rune(word))
}

// completeInput returns candidates for the last word of input.
func completeInput(ctx context.Context, input string) []string {
	parts := strings.Fields(input)
	if len(parts) == 0 || (len(parts) == 1 && !strings.HasSuffix(input, " ")) {
		prefix := ""
		if len(parts) == 1 {
			prefix = strings.ToLower(parts[0])
		}
		return completeCommands(prefix)
	}

	word := ""
	if !strings.HasSuffix(input, " ") {
		word = parts[len(parts)-1]
	}

	switch cmd := commands.Get(strings.ToLower(parts[0])); {
	case cmd == nil:
		return nil
	case cmd.Name == "use":
		return completeShares(word)
	case cmd.Name == "put" || cmd.Name == "putdir":
		if len(parts) == 1 || (len(parts) == 2 && word != "") {
			return nil
		}
		return completePaths(ctx, word)
	case pathCommands[cmd.Name]:
		return completePaths(ctx, word)
	}
	return nil
}

var pathCommands = map[string]bool{
	"ls": true, "cd": true, "stat": true, "get": true,
	"rm": true, "mkdir": true, "rmdir": true, "mv": true,
}

func completeCommands(prefix string) []string {
	var matches []string
	for _, cmd := range commands.List() {
		if strings.HasPrefix(cmd.Name, prefix) {
			matches = append(matches, cmd.Name)
		}
	}
	return matches
}

// completePaths lists the remote directory named by the word typed so far.
func completePaths(ctx context.Context, word string) []string {
	if currentTree == nil {
		return nil
	}
	word = strings.ReplaceAll(word, `\`, "/")
	dirPart, prefix := "", word
	if i := strings.LastIndexByte(word, '/'); i >= 0 {
		dirPart, prefix = word[:i+1], word[i+1:]
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	files, err := currentTree.List(ctx, resolvePath(dirPart))
	if err != nil {
		return nil
	}

	var matches []string
	for _, f := range files {
		if !strings.HasPrefix(strings.ToLower(f.Name), strings.ToLower(prefix)) {
			continue
		}
		name := dirPart + f.Name
		if f.IsDir() {
			name += "/"
		}
		matches = append(matches, name)
	}
	sort.Strings(matches)
	return matches
}

// completeShares offers shares seen by the last 'shares' command.
func completeShares(prefix string) []string {
	shares := knownShares
	if len(shares) == 0 {
		shares = []string{"C$", "ADMIN$", "SYSVOL", "NETLOGON"}
	}
	var matches []string
	for _, s := range shares {
		if strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix)) {
			matches = append(matches, s)
		}
	}
	return matches
}

func buildPrompt() string {
	prompt := colorBold + "smb" + colorReset
	if client != nil {
		prompt += " " + colorCyan + client.Host() + colorReset
		if currentTree != nil {
			prompt += `\` + currentTree.Share()
			if currentPath != "" {
				prompt += `\` + strings.ReplaceAll(currentPath, "/", `\`)
			}
		}
	}
	return prompt + "> "
}

// parseArgs splits on spaces, keeping quoted runs together.
func parseArgs(line string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	for _, r := range line {
		switch {
		case r == '"' || r == '\'':
			if inQuote && r == quoteChar {
				inQuote = false
			} else if !inQuote {
				inQuote = true
				quoteChar = r
			} else {
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
