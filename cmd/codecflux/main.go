package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/codecflux/internal/pipeline"
	"github.com/linuxmatters/codecflux/internal/ui"
)

const version = "0.1.0"

var CLI struct {
	Input   string   `arg:"" name:"input" help:"Input file or glob pattern" optional:""`
	Output  string   `arg:"" name:"output" help:"Output file, or directory in batch mode" optional:""`
	Show    bool     `help:"Inspect the input's structure instead of transcoding" short:"s"`
	JSON    bool     `help:"With --show, emit JSON instead of text"`
	Packets bool     `help:"With --show, include per-packet positions"`
	Apply   []string `help:"Transform specification name=arg1,arg2 (repeatable)" short:"a"`
	Codec   string   `help:"Output codec override for WAV output" enum:",pcm,adpcm" default:""`
	Quiet   bool     `help:"Suppress the progress display" short:"q"`
	Version bool     `help:"Show version information" short:"v"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("codecflux"),
		kong.Description("Transcode audio and video between WAV, FLAC, MP3, OGG, Y4M, AVI, and MP4 containers, with an optional per-frame transform chain."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	if CLI.Version {
		fmt.Printf("codecflux version %s\n", version)
		os.Exit(0)
	}
	if CLI.Input == "" {
		fmt.Fprintln(os.Stderr, "Error: <input> is required")
		os.Exit(1)
	}

	inputs, err := expandInputs(CLI.Input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if CLI.Show {
		for _, in := range inputs {
			if err := runShow(in); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s: %v\n", in, err)
				os.Exit(1)
			}
		}
		return
	}

	if CLI.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: <output> is required when transcoding")
		os.Exit(1)
	}
	for _, in := range inputs {
		out, err := outputPathFor(in, CLI.Output, len(inputs) > 1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := runTranscode(in, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", in, err)
			os.Exit(1)
		}
	}
}

// expandInputs resolves a glob pattern to concrete paths; a plain path
// passes through untouched so missing-file errors stay precise.
func expandInputs(input string) ([]string, error) {
	if !strings.Contains(input, "*") {
		return []string{input}, nil
	}
	matches, err := filepath.Glob(input)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %q", input)
	}
	return matches, nil
}

// outputPathFor maps one input onto the output argument: a direct path
// for a single input, or a file inside the output directory when batch
// mode is transcoding several.
func outputPathFor(in, output string, batch bool) (string, error) {
	stat, err := os.Stat(output)
	isDir := err == nil && stat.IsDir()
	if batch && !isDir {
		return "", fmt.Errorf("output %q must be a directory when the input pattern matches multiple files", output)
	}
	if isDir {
		return filepath.Join(output, filepath.Base(in)), nil
	}
	return output, nil
}

func runTranscode(in, out string) error {
	opts := pipeline.Options{Transforms: CLI.Apply, Codec: CLI.Codec}

	if CLI.Quiet {
		_, err := pipeline.Transcode(in, out, opts)
		return err
	}

	var inputSize int64
	if stat, err := os.Stat(in); err == nil {
		inputSize = stat.Size()
	}
	prog := tea.NewProgram(ui.NewTranscodeModel(in, out, inputSize))

	start := time.Now()
	var result *pipeline.Result
	var runErr error
	go func() {
		opts.OnProgress = func(p pipeline.Progress) {
			prog.Send(ui.TranscodeProgress{
				PacketsRead:     p.PacketsRead,
				FramesProcessed: p.FramesProcessed,
				PacketsWritten:  p.PacketsWritten,
				BytesRead:       p.BytesRead,
				BytesWritten:    p.BytesWritten,
			})
		}
		result, runErr = pipeline.Transcode(in, out, opts)
		if runErr != nil {
			prog.Send(ui.TranscodeFailed{Err: runErr})
			return
		}
		prog.Send(ui.TranscodeComplete{
			Output:          out,
			PacketsRead:     result.PacketsRead,
			FramesProcessed: result.FramesProcessed,
			PacketsWritten:  result.PacketsWritten,
			BytesWritten:    result.BytesWritten,
			PassThrough:     result.PassThrough,
			Elapsed:         time.Since(start),
		})
	}()

	if _, err := prog.Run(); err != nil {
		return err
	}
	return runErr
}

func runShow(in string) error {
	info, err := pipeline.Inspect(in, CLI.Packets)
	if err != nil {
		return err
	}
	if CLI.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	printInfo(info)
	return nil
}

func printInfo(info *pipeline.MediaInfo) {
	fmt.Printf("%s: %s container, %d stream(s)\n", info.Path, info.Container, len(info.Streams))
	for _, s := range info.Streams {
		switch {
		case s.SampleRate > 0:
			fmt.Printf("  #%d %s: %s, %d Hz, %d ch, %d bit\n",
				s.Index, s.Kind, s.Codec, s.SampleRate, s.Channels, s.BitDepth)
		case s.Width > 0:
			line := fmt.Sprintf("  #%d %s: %s, %dx%d", s.Index, s.Kind, s.Codec, s.Width, s.Height)
			if s.FrameRate != "" {
				line += " @ " + s.FrameRate + " fps"
			}
			fmt.Println(line)
		default:
			fmt.Printf("  #%d %s: %s\n", s.Index, s.Kind, s.Codec)
		}
	}
	keys := make([]string, 0, len(info.Details))
	for key := range info.Details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("  %s: %s\n", key, info.Details[key])
	}
	for _, p := range info.Packets {
		fmt.Printf("  packet %4d  stream %d  pts %8d  %9.4fs  %6d bytes  key=%v\n",
			p.Index, p.StreamIdx, p.PTS, p.Seconds, p.Size, p.KeyFrame)
	}
}
