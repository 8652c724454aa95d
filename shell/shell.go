// Package shell is the command-interpreter thread: it attaches to the
// console driver, reads cooked lines from the ConsInput box and runs the
// built-in commands.
package shell

import (
	"strconv"
	"strings"

	"github.com/google/shlex"

	"ember/console"
	"ember/flashfs"
	"ember/internal/buildinfo"
	"ember/kernel"
)

// Chunked output keeps single console messages well under the kernel
// heap block sizes.
const writeChunk = 256

type command struct {
	name string
	desc string
	run  func(s *Shell, ctx *kernel.Context, args []string)
}

var commands []command

func init() {
	commands = []command{
		{name: "help", desc: "Show available commands.", run: (*Shell).cmdHelp},
		{name: "echo", desc: "Print arguments.", run: (*Shell).cmdEcho},
		{name: "ver", desc: "Show build version.", run: (*Shell).cmdVer},
		{name: "ls", desc: "List stored files.", run: (*Shell).cmdLs},
		{name: "cat", desc: "Print a stored file.", run: (*Shell).cmdCat},
		{name: "rm", desc: "Remove a stored file.", run: (*Shell).cmdRm},
	}
}

// Shell is the command thread. A nil volume disables the file commands.
type Shell struct {
	vol *flashfs.Volume
}

func New(vol *flashfs.Volume) *Shell {
	return &Shell{vol: vol}
}

// Main is the thread entry point.
func (s *Shell) Main(ctx *kernel.Context, args []string) int {
	console.Use(ctx)

	for {
		console.Write(ctx, "command> ")

		_, size, p := ctx.Recv(kernel.ConsInput)
		line := strings.TrimRight(string(ctx.Bytes(p, size)), "\r\n")
		ctx.Kmfree(p)

		fields, err := shlex.Split(line)
		if err != nil {
			console.Write(ctx, "bad quoting.\n")
			continue
		}
		if len(fields) == 0 {
			continue
		}

		cmd := lookup(fields[0])
		if cmd == nil {
			console.Write(ctx, "unknown.\n")
			continue
		}
		cmd.run(s, ctx, fields[1:])
	}
}

func lookup(name string) *command {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i]
		}
	}
	return nil
}

func (s *Shell) cmdHelp(ctx *kernel.Context, args []string) {
	for _, c := range commands {
		console.Write(ctx, c.name+"\t"+c.desc+"\n")
	}
}

func (s *Shell) cmdEcho(ctx *kernel.Context, args []string) {
	console.Write(ctx, strings.Join(args, " ")+"\n")
}

func (s *Shell) cmdVer(ctx *kernel.Context, args []string) {
	console.Write(ctx, "ember "+buildinfo.Short()+"\n")
}

func (s *Shell) cmdLs(ctx *kernel.Context, args []string) {
	if s.vol == nil {
		console.Write(ctx, "no filesystem.\n")
		return
	}
	infos, err := s.vol.List()
	if err != nil {
		console.Write(ctx, "ls failed.\n")
		return
	}
	for _, info := range infos {
		console.Write(ctx, info.Name+"\t"+strconv.FormatInt(info.Size, 10)+"\n")
	}
}

func (s *Shell) cmdCat(ctx *kernel.Context, args []string) {
	if s.vol == nil {
		console.Write(ctx, "no filesystem.\n")
		return
	}
	if len(args) < 1 {
		console.Write(ctx, "cat: missing name.\n")
		return
	}
	data, err := s.vol.ReadFile(args[0])
	if err != nil {
		console.Write(ctx, "cat: cannot read "+args[0]+".\n")
		return
	}
	for off := 0; off < len(data); off += writeChunk {
		end := off + writeChunk
		if end > len(data) {
			end = len(data)
		}
		console.Write(ctx, string(data[off:end]))
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		console.Write(ctx, "\n")
	}
}

func (s *Shell) cmdRm(ctx *kernel.Context, args []string) {
	if s.vol == nil {
		console.Write(ctx, "no filesystem.\n")
		return
	}
	if len(args) < 1 {
		console.Write(ctx, "rm: missing name.\n")
		return
	}
	if err := s.vol.Remove(args[0]); err != nil {
		console.Write(ctx, "rm: cannot remove "+args[0]+".\n")
		return
	}
}
