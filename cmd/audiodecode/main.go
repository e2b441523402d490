package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// version is set via ldflags at build time
var version = "dev"

// Globals are the flags shared by every command. Unset values fall back to
// the config file, then to defaults.
type Globals struct {
	Config   string `help:"YAML config file." type:"path" env:"AUDIODECODE_CONFIG"`
	Module   string `help:"Decoder module: native, or a .wasm path." env:"AUDIODECODE_MODULE"`
	Offload  bool   `help:"Decode in a worker goroutine."`
	Remote   string `help:"Websocket URL of a remote worker." env:"AUDIODECODE_REMOTE"`
	LogLevel string `help:"Log level (debug, info, warn, error)." name:"log-level"`
	LogJSON  bool   `help:"Log as JSON." name:"log-json"`
}

var cli struct {
	Globals

	Probe       probeCmd       `cmd:"" help:"Print the properties of audio files."`
	Decode      decodeCmd      `cmd:"" help:"Decode a range of an audio file."`
	Worker      workerCmd      `cmd:"" help:"Serve offloaded sessions over websocket."`
	Watch       watchCmd       `cmd:"" help:"Probe audio files as they appear in a directory."`
	Interactive interactiveCmd `cmd:"" aliases:"i" help:"Explore a file in a terminal UI."`

	Version kong.VersionFlag `help:"Show version information."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("audiodecode"),
		kong.Description("Decode audio files to float32 samples, in process or on a worker."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
