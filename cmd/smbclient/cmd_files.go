package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ineffectivecoder/gosmbclient/pkg/pipe"
	"github.com/ineffectivecoder/gosmbclient/pkg/smbclient"
)

var errNoShare = errors.New("not connected to a share (use 'use <share>' first)")

func registerShareCommands() {
	commands.Register(&Command{
		Name:        "shares",
		Description: "List available shares",
		Handler:     cmdShares,
	})
	commands.Register(&Command{
		Name:        "use",
		Aliases:     []string{"connect"},
		Description: "Connect to a share",
		Usage:       "use <sharename>",
		Handler:     cmdUse,
	})
	commands.Register(&Command{
		Name:        "disconnect",
		Aliases:     []string{"disc"},
		Description: "Disconnect from current share",
		Handler:     cmdDisconnect,
	})
	commands.Register(&Command{
		Name:        "serverinfo",
		Aliases:     []string{"srvinfo"},
		Description: "Show server name, domain and OS version",
		Handler:     cmdServerInfo,
	})
	commands.Register(&Command{
		Name:        "pipes",
		Description: "Probe well-known named pipes on IPC$",
		Handler:     cmdPipes,
	})
	commands.Register(&Command{
		Name:        "df",
		Description: "Show free space on the current share",
		Handler:     cmdDf,
	})
}

func cmdShares(ctx context.Context, args []string) error {
	info_("Enumerating shares on %s...", client.Host())
	shares, err := client.ListShares(ctx)
	if err != nil {
		return err
	}
	knownShares = knownShares[:0]
	rows := make([][]string, 0, len(shares))
	for _, s := range shares {
		knownShares = append(knownShares, s.Name)
		rows = append(rows, []string{s.Name, s.Type.String(), s.Comment})
	}
	fmt.Println()
	printTable(stdout, []string{"Name", "Type", "Comment"}, rows)
	fmt.Println()
	success_("Found %d share(s)", len(shares))
	return nil
}

func cmdServerInfo(ctx context.Context, args []string) error {
	info, err := client.ServerInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Println()
	printTable(stdout, []string{"Property", "Value"}, [][]string{
		{"Name", info.Name},
		{"Domain", info.Domain},
		{"Platform", info.Platform},
		{"OS version", info.OSVersion},
	})
	fmt.Println()
	return nil
}

func cmdPipes(ctx context.Context, args []string) error {
	statuses, err := client.ProbePipes(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		state := st.Status
		switch st.Status {
		case pipe.Available:
			state = colorGreen + state + colorReset
		case pipe.AccessDenied:
			state = colorYellow + state + colorReset
		}
		rows = append(rows, []string{st.Name, state})
	}
	fmt.Println()
	printTable(stdout, []string{"Pipe", "Status"}, rows)
	fmt.Println()
	return nil
}

func cmdUse(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: use <sharename>")
	}
	name := strings.Trim(args[0], `\/`)
	if strings.EqualFold(name, pipe.IPCShare) {
		return fmt.Errorf("IPC$ holds named pipes, not files")
	}

	tree, err := client.Tree(name)
	if err != nil {
		return err
	}
	info_("Connecting to \\\\%s\\%s...", client.Host(), name)
	// List the root so a bad share name fails here rather than on first use.
	if _, err := tree.List(ctx, ""); err != nil {
		_ = tree.Release(ctx)
		return fmt.Errorf("failed to connect: %w", err)
	}

	releaseTree(ctx)
	currentTree = tree
	currentPath = ""
	success_("Connected to %s", name)
	return nil
}

func cmdDisconnect(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	name := currentTree.Share()
	releaseTree(ctx)
	success_("Disconnected from %s", name)
	return nil
}

// releaseTree drops the current share after queued transfers finish.
func releaseTree(ctx context.Context) {
	if currentTree == nil {
		return
	}
	waitQueue()
	if err := currentTree.Release(ctx); err != nil {
		debug_("Tree disconnect: %v", err)
	}
	currentTree = nil
	currentPath = ""
}

func cmdDf(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	fs, err := currentTree.FreeSpace(ctx)
	if err != nil {
		return err
	}
	used := fs.Total - fs.ActualAvailable
	fmt.Println()
	printTable(stdout, []string{"Share", "Size", "Used", "Available"}, [][]string{{
		currentTree.Share(),
		formatSize(int64(fs.Total)),
		formatSize(int64(used)),
		formatSize(int64(fs.CallerAvailable)),
	}})
	fmt.Println()
	return nil
}

func registerFileCommands() {
	commands.Register(&Command{
		Name:        "ls",
		Aliases:     []string{"dir", "list"},
		Description: "List directory contents",
		Usage:       "ls [path] [pattern]",
		Handler:     cmdLs,
	})
	commands.Register(&Command{
		Name:        "cd",
		Description: "Change directory",
		Usage:       "cd <path>",
		Handler:     cmdCd,
	})
	commands.Register(&Command{
		Name:        "pwd",
		Description: "Print working directory",
		Handler:     cmdPwd,
	})
	commands.Register(&Command{
		Name:        "stat",
		Description: "Show file details",
		Usage:       "stat <path>",
		Handler:     cmdStat,
	})
	commands.Register(&Command{
		Name:        "mkdir",
		Aliases:     []string{"md"},
		Description: "Create a directory",
		Usage:       "mkdir [-p] <path>",
		Handler:     cmdMkdir,
	})
	commands.Register(&Command{
		Name:        "rm",
		Aliases:     []string{"del", "delete"},
		Description: "Delete a file",
		Usage:       "rm <file>",
		Handler:     cmdRm,
	})
	commands.Register(&Command{
		Name:        "rmdir",
		Aliases:     []string{"rd"},
		Description: "Delete a directory and its contents",
		Usage:       "rmdir <path>",
		Handler:     cmdRmdir,
	})
	commands.Register(&Command{
		Name:        "mv",
		Aliases:     []string{"move", "rename"},
		Description: "Move or rename a file or directory",
		Usage:       "mv <from> <to>",
		Handler:     cmdMv,
	})
}

// resolvePath turns a shell argument into a share-relative path.
func resolvePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if !strings.HasPrefix(p, "/") {
		p = currentPath + "/" + p
	}
	p = strings.Trim(path.Clean("/"+p), "/")
	return p
}

func cmdLs(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	dir, pattern := currentPath, "*"
	if len(args) > 0 {
		dir = resolvePath(args[0])
	}
	if len(args) > 1 {
		pattern = args[1]
	}

	files, err := currentTree.ListPattern(ctx, dir, pattern)
	if err != nil {
		return fmt.Errorf("failed to list: %w", err)
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		kind, size, name := "", formatSize(f.Size), f.Name
		if f.IsDir() {
			kind, size, name = "DIR", "", colorBlue+f.Name+"/"+colorReset
		}
		rows = append(rows, []string{kind, size, formatTime(f.Modified), name})
	}
	fmt.Println()
	printTable(stdout, []string{"", "Size", "Modified", "Name"}, rows)
	fmt.Printf("\n  %d item(s)\n\n", len(files))
	return nil
}

func cmdCd(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	if len(args) < 1 {
		currentPath = ""
		return nil
	}
	target := resolvePath(args[0])
	if target != "" {
		st, err := currentTree.Stat(ctx, target)
		if err != nil {
			return fmt.Errorf("cannot access: %w", err)
		}
		if !st.IsDir {
			return fmt.Errorf("not a directory: %s", args[0])
		}
	}
	currentPath = target
	return nil
}

func cmdPwd(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	fmt.Printf("\\\\%s\\%s\\%s\n", client.Host(), currentTree.Share(), strings.ReplaceAll(currentPath, "/", `\`))
	return nil
}

func cmdStat(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: stat <path>")
	}
	st, err := currentTree.Stat(ctx, resolvePath(args[0]))
	if err != nil {
		return err
	}
	kind := "file"
	if st.IsDir {
		kind = "directory"
	}
	fmt.Println()
	printTable(stdout, []string{"Property", "Value"}, [][]string{
		{"Name", st.Name},
		{"Type", kind},
		{"Size", fmt.Sprintf("%s (%d bytes)", formatSize(st.Size), st.Size)},
		{"Allocated", formatSize(st.AllocationSize)},
		{"Attributes", fmt.Sprintf("0x%08X", uint32(st.Attributes))},
		{"Created", formatTime(st.Created)},
		{"Modified", formatTime(st.Modified)},
		{"Accessed", formatTime(st.Accessed)},
		{"Changed", formatTime(st.Changed)},
	})
	fmt.Println()
	return nil
}

func cmdMkdir(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	parents := len(args) > 0 && args[0] == "-p"
	if parents {
		args = args[1:]
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: mkdir [-p] <path>")
	}
	p := resolvePath(args[0])
	var err error
	if parents {
		err = currentTree.MkdirAll(ctx, p)
	} else {
		err = currentTree.Mkdir(ctx, p)
	}
	if err != nil {
		return err
	}
	success_("Created %s", p)
	return nil
}

func cmdRm(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: rm <file>")
	}
	p := resolvePath(args[0])
	if err := currentTree.Remove(ctx, p); err != nil {
		return err
	}
	success_("Deleted %s", p)
	return nil
}

func cmdRmdir(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: rmdir <path>")
	}
	p := resolvePath(args[0])
	if err := currentTree.RemoveAll(ctx, p); err != nil {
		return err
	}
	if currentPath == p || strings.HasPrefix(currentPath, p+"/") {
		currentPath = path.Dir("/" + p)[1:]
	}
	success_("Deleted %s", p)
	return nil
}

func cmdMv(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: mv <from> <to>")
	}
	from, to := resolvePath(args[0]), resolvePath(args[1])
	if err := currentTree.Move(ctx, from, to); err != nil {
		return err
	}
	success_("Moved %s -> %s", from, to)
	return nil
}

func registerTransferCommands() {
	commands.Register(&Command{
		Name:        "get",
		Aliases:     []string{"download"},
		Description: "Download a file (append & to queue it)",
		Usage:       "get <remote> [local] [&]",
		Handler:     cmdGet,
	})
	commands.Register(&Command{
		Name:        "put",
		Aliases:     []string{"upload"},
		Description: "Upload a file (append & to queue it)",
		Usage:       "put <local> [remote] [&]",
		Handler:     cmdPut,
	})
	commands.Register(&Command{
		Name:        "putdir",
		Description: "Upload a local directory recursively",
		Usage:       "putdir <localdir> [remote]",
		Handler:     cmdPutdir,
	})
	commands.Register(&Command{
		Name:        "jobs",
		Description: "Show queued transfers",
		Handler:     cmdJobs,
	})
}

// background strips a trailing "&" argument.
func background(args []string) ([]string, bool) {
	if n := len(args); n > 0 && args[n-1] == "&" {
		return args[:n-1], true
	}
	return args, false
}

// runTransfer queues job and waits for it unless bg is set.
func runTransfer(name string, bg bool, job smbclient.Job) error {
	done, err := queue.Submit(job)
	if err != nil {
		return err
	}
	if !bg {
		return <-done
	}
	info_("Queued %s (%d pending)", name, queue.Pending())
	go func() {
		if err := <-done; err != nil {
			error_("%s: %v", name, describe(err))
			return
		}
		success_("%s finished", name)
	}()
	return nil
}

func cmdGet(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	args, bg := background(args)
	if len(args) < 1 {
		return fmt.Errorf("usage: get <remote> [local] [&]")
	}
	remote := resolvePath(args[0])
	local := path.Base("/" + remote)
	if len(args) > 1 {
		local = args[1]
		if fi, err := os.Stat(local); err == nil && fi.IsDir() {
			local = filepath.Join(local, path.Base("/"+remote))
		}
	}
	tree := currentTree

	return runTransfer("get "+remote, bg, func() error {
		f, err := os.Create(local)
		if err != nil {
			return fmt.Errorf("failed to create local: %w", err)
		}
		var progress smbclient.ProgressFunc
		if !bg {
			progress = progressPrinter(remote)
		}
		n, err := tree.Download(ctx, remote, f, 0, -1, progress)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		if !bg {
			success_("Downloaded %s -> %s (%s)", remote, local, formatSize(n))
		}
		return nil
	})
}

func cmdPut(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	args, bg := background(args)
	if len(args) < 1 {
		return fmt.Errorf("usage: put <local> [remote] [&]")
	}
	local := args[0]
	remote := filepath.Base(local)
	if len(args) > 1 {
		remote = args[1]
	}
	remote = resolvePath(remote)
	tree := currentTree

	return runTransfer("put "+remote, bg, func() error {
		var progress smbclient.ProgressFunc
		if !bg {
			progress = progressPrinter(remote)
		}
		n, err := tree.UploadFile(ctx, local, remote, progress)
		if err != nil {
			return err
		}
		if !bg {
			success_("Uploaded %s -> %s (%s)", local, remote, formatSize(n))
		}
		return nil
	})
}

func cmdPutdir(ctx context.Context, args []string) error {
	if currentTree == nil {
		return errNoShare
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: putdir <localdir> [remote]")
	}
	local := args[0]
	remote := filepath.Base(filepath.Clean(local))
	if len(args) > 1 {
		remote = args[1]
	}
	remote = resolvePath(remote)
	tree := currentTree

	var files int
	return runTransfer("putdir "+remote, false, func() error {
		err := tree.UploadDir(ctx, local, remote, func(name string, done, total int64) {
			if done == total {
				files++
				debug_("Uploaded %s (%s)", name, formatSize(done))
			}
		})
		if err != nil {
			return err
		}
		success_("Uploaded %s -> %s (%d file(s))", local, remote, files)
		return nil
	})
}

func cmdJobs(ctx context.Context, args []string) error {
	completed, failed := queue.Stats()
	info_("%d pending, %d completed, %d failed", queue.Pending(), completed, failed)
	return nil
}
