package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	audiodecoder "github.com/wippyai/audio-decoder"
)

type probeCmd struct {
	Files []string `arg:"" name:"file" help:"Audio files to probe." type:"existingfile"`
}

func (c *probeCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(helpStyle).
		Headers("FILE", "ENCODING", "RATE", "CHANNELS", "DURATION")
	var failed int
	for _, path := range c.Files {
		name := filepath.Base(path)
		props, err := a.probe(ctx, path)
		if err != nil {
			failed++
			t.Row(name, errorStyle.Render(err.Error()), "", "", "")
			continue
		}
		t.Row(name,
			props.Encoding,
			strconv.FormatUint(uint64(props.SampleRate), 10),
			strconv.FormatUint(uint64(props.ChannelCount), 10),
			fmt.Sprintf("%.3fs", props.Duration))
	}
	fmt.Fprintln(os.Stdout, t.Render())
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be probed", failed, len(c.Files))
	}
	return nil
}

func (a *app) probe(ctx context.Context, path string) (audiodecoder.Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audiodecoder.Properties{}, err
	}
	s, err := a.open(ctx, data)
	if err != nil {
		return audiodecoder.Properties{}, err
	}
	defer s.Dispose(ctx)
	return s.Properties()
}
