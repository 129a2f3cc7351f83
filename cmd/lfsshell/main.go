package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/dsoprea/go-lfs"
)

// shellState holds the mounted filesystem and backing file that every
// cobra command (whether dispatched from the interactive REPL or a
// one-shot script invocation) operates against.
type shellState struct {
	f  *os.File
	bd *lfs.FileBlockDevice
	fs *lfs.Filesystem
}

var state = new(shellState)

func main() {
	defer func() {
		if r := recover(); r != nil {
			err := log.Wrap(r.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	root := newRootCommand()

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var imagePath string

	root := &cobra.Command{
		Use:   "lfsshell",
		Short: "Interactive and scriptable client for a leveled filesystem image",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			if cmd.Name() == "mount" || cmd.Name() == "lfsshell" {
				return nil
			}

			if state.fs == nil {
				return fmt.Errorf("no volume mounted -- run 'mount' first")
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(imagePath)
		},
	}

	root.PersistentFlags().StringVarP(&imagePath, "filepath", "f", "", "image file to mount before entering the interactive shell")

	root.AddCommand(
		newMountCommand(),
		newLogCommand(),
		newLookCommand(),
		newDirTreeCommand(),
		newCreateCommand(),
		newWriteCommand(),
		newReadCommand(),
		newSymlinkCommand(),
		newHardlinkCommand(),
		newNavCommand(),
		newDelCommand(),
		newMoveCommand(),
		newLevelCommand(),
		newLinkCommand(),
		newCurrentCommand(),
		newAttrsetCommand(),
		newExitCommand(),
	)

	return root
}

func newMountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mount [path]",
		Short: "attach to an image file and replay its journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.OpenFile(args[0], os.O_RDWR, 0644)
			if err != nil {
				return err
			}

			bd := lfs.NewFileBlockDevice(f, 0)

			fs, err := lfs.Mount(bd)
			if err != nil {
				f.Close()
				return err
			}

			state.f = f
			state.bd = bd
			state.fs = fs

			fmt.Println("mounted")

			return nil
		},
	}
}

func newLogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "log [on|off]",
		Short: "enable or disable sector tracing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state.bd.SetTrace(args[0] == "on")
			return nil
		},
	}
}

func newLookCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "look [target]",
		Short: "list current / folder / folder:level",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				entries, err := state.fs.LookCurrent()
				if err != nil {
					return err
				}

				printEntries(entries)

				return nil
			}

			target := args[0]
			if idx := strings.IndexByte(target, ':'); idx >= 0 {
				entries, err := state.fs.LookFolderLevel(target[:idx], target[idx+1:])
				if err != nil {
					return err
				}

				printEntries(entries)

				return nil
			}

			levels, err := state.fs.LookFolderLevels(target)
			if err != nil {
				return err
			}

			for _, ve := range levels {
				fmt.Printf("%s -> cluster %d\n", ve.NameString(), ve.ContentCluster)
			}

			return nil
		},
	}
}

func printEntries(entries []*lfs.DirEntry) {
	for _, de := range entries {
		fmt.Printf("%-24s %-12s %8s %s\n", de.NameString(), de.EntryType(), humanize.Bytes(de.Size), lfs.PermissionString(de.Permissions()))
	}
}

func newDirTreeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dir-tree",
		Short: "print recursive tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := state.fs.DirTree()
			if err != nil {
				return err
			}

			fmt.Print(lfs.RenderTree(lines))

			return nil
		},
	}
}

func newCreateCommand() *cobra.Command {
	var asFolder bool

	cmd := &cobra.Command{
		Use:   "create [path]",
		Short: "create a file or leveled directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryType := lfs.TypeFile
			if asFolder == true {
				entryType = lfs.TypeLeveledDir
			}

			return state.fs.Create(entryType, args[0], lfs.PermDefault)
		},
	}

	cmd.Flags().BoolVar(&asFolder, "folder", false, "create a leveled directory instead of a file")

	return cmd
}

func newWriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "write [name]",
		Short: "write stdin (until a line containing only .done) to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var b strings.Builder

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := scanner.Text()
				if line == ".done" {
					break
				}

				b.WriteString(line)
				b.WriteByte('\n')
			}

			return state.fs.Write(args[0], []byte(b.String()))
		},
	}
}

func newReadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read [name]",
		Short: "print a file's contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := state.fs.Read(args[0])
			if err != nil {
				return err
			}

			os.Stdout.Write(data)

			return nil
		},
	}
}

func newSymlinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "symlink [target] [linkname]",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.fs.Symlink(args[0], args[1])
		},
	}
}

func newHardlinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hardlink [target] [linkname]",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.fs.Hardlink(args[0], args[1])
		},
	}
}

func newNavCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "nav [path]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.fs.Resolver().Nav(args[0])
		},
	}
}

func newDelCommand() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "del [name]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.fs.Del(args[0], recursive)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete a leveled directory's active levels too")

	return cmd
}

func newMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move [src] [dst]",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.fs.Move(args[0], args[1])
		},
	}
}

func newLevelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "level",
		Short: "add/remove/rename a level of a folder",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:  "add [folder] [name]",
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return state.fs.LevelAdd(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:  "remove [folder] [name]",
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return state.fs.LevelRemove(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:  "rename [folder] [oldName] [newName]",
			Args: cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return state.fs.LevelRename(args[0], args[1], args[2])
			},
		},
	)

	return cmd
}

func newLinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "link [dir1] [dir2] [level]",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.fs.Link(args[0], args[1], args[2])
		},
	}
}

func newCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use: "current",
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, level := state.fs.Current()
			fmt.Printf("cluster %d, level %s\n", cluster, level)
			return nil
		},
	}
}

func newAttrsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attrset [path] [+r|-r|+w|-w|+x|-x|+h|-h|+s|-s]",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.fs.Attrset(args[0], args[1])
		},
	}
}

func newExitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exit",
		Short: "clean shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			if state.bd != nil {
				state.bd.Flush()
			}

			if state.f != nil {
				state.f.Close()
			}

			os.Exit(0)

			return nil
		},
	}
}

// runInteractive reads lines from stdin, tokenizes each with shellwords
// (so quoted names and folder:level segments survive splitting), and
// dispatches every line through the same cobra command tree a one-shot
// script invocation uses.
func runInteractive(imagePath string) error {
	if imagePath != "" {
		f, err := os.OpenFile(imagePath, os.O_RDWR, 0644)
		log.PanicIf(err)

		bd := lfs.NewFileBlockDevice(f, 0)

		fs, err := lfs.Mount(bd)
		log.PanicIf(err)

		state.f = f
		state.bd = bd
		state.fs = fs

		fmt.Println("mounted")
	}

	parser := shellwords.NewParser()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("lfs> ")

		if scanner.Scan() != true {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens, err := parser.Parse(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		dispatch(tokens)
	}

	return nil
}

func dispatch(tokens []string) {
	root := newRootCommand()
	root.SetArgs(tokens)

	if err := root.Execute(); err != nil {
		fmt.Println("error:", err)
	}
}
